package domain

// MessageBus routes events between the webhook channel and the relay loop.
type MessageBus interface {
	Publish(evt InboundEvent)
	Subscribe() <-chan InboundEvent
	SendOutbound(reply OutboundReply)
	OnOutbound(channelName string, handler func(OutboundReply))
	Close()
}
