package redis

import "strings"

// Kinds of subscription stream frames.
const (
	KindSubscribe    = "subscribe"
	KindUnsubscribe  = "unsubscribe"
	KindPSubscribe   = "psubscribe"
	KindPUnsubscribe = "punsubscribe"
	KindMessage      = "message"
	KindPMessage     = "pmessage"
	KindPong         = "pong"
)

// SubscriptionEvent is a frame of subscription stream.
// It is either a confirmation of (un)subscription carrying active subscriptions count,
// or a published message.
type SubscriptionEvent struct {
	Kind string
	// Channel is a channel name, or pattern for psubscribe/punsubscribe confirmations.
	Channel string
	// Pattern is set for pmessage.
	Pattern string
	// Count of active subscriptions after confirmation.
	Count int64
	Body  []byte
}

// IsMessage reports if event is a published message.
func (e SubscriptionEvent) IsMessage() bool {
	return e.Kind == KindMessage || e.Kind == KindPMessage
}

// IsPattern reports if event concerns pattern subscription.
func (e SubscriptionEvent) IsPattern() bool {
	return e.Kind == KindPSubscribe || e.Kind == KindPUnsubscribe || e.Kind == KindPMessage
}

// Subscription reads frame of subscription stream.
var Subscription ParserFunc[SubscriptionEvent] = parseSubscription

func parseSubscription(r *Reader) (SubscriptionEvent, error) {
	var ev SubscriptionEvent
	n, err := r.ReadArrayLen()
	if err != nil {
		return ev, err
	}
	if n < 2 {
		if n > 0 {
			if err = r.skipN(n); err != nil {
				return ev, err
			}
		}
		return ev, ErrUnexpectedSize.New("subscription frame of %d elements", n).WithProperty(EKActual, n)
	}
	kind, _, err := r.ReadBulkString()
	if err != nil {
		return ev, err
	}
	ev.Kind = strings.ToLower(kind)
	switch ev.Kind {
	case KindMessage:
		if err = checkSize(3, n); err != nil {
			break
		}
		if ev.Channel, err = parseString(r); err != nil {
			return ev, err
		}
		ev.Body, err = r.ReadBulk()
		return ev, err
	case KindPMessage:
		if err = checkSize(4, n); err != nil {
			break
		}
		if ev.Pattern, err = parseString(r); err != nil {
			return ev, err
		}
		if ev.Channel, err = parseString(r); err != nil {
			return ev, err
		}
		ev.Body, err = r.ReadBulk()
		return ev, err
	case KindSubscribe, KindUnsubscribe, KindPSubscribe, KindPUnsubscribe:
		if err = checkSize(3, n); err != nil {
			break
		}
		if ev.Channel, err = parseString(r); err != nil {
			return ev, err
		}
		ev.Count, err = r.ReadInt()
		return ev, err
	case KindPong:
		ev.Body, err = r.ReadBulk()
		if err == nil && n > 2 {
			err = r.skipN(n - 2)
		}
		return ev, err
	default:
		err = ErrResponseUnexpected.New("unknown subscription frame %q", kind)
	}
	if serr := r.skipN(n - 1); serr != nil {
		return ev, serr
	}
	return ev, err
}
