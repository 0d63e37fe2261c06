// Package natsio serves the command dispatcher over NATS request/reply.
package natsio

import (
	"context"
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/command"
	"github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultRequestTimeout = 10 * time.Second

func CommandSubject(prefix string) string {
	return prefix + ".command"
}

func ClaimSubject(prefix string) string {
	return prefix + ".claim"
}

// Dispatcher is implemented by command.Dispatcher.
type Dispatcher interface {
	Claim(ctx context.Context, req command.ClaimRequest) (*command.ClaimResult, error)
	Command(ctx context.Context, req command.CommandRequest) (*command.CommandResult, error)
}

type Subscriber struct {
	nc     *nats.Conn
	prefix string
	disp   Dispatcher
	subs   []*nats.Subscription
}

func NewSubscriber(nc *nats.Conn, prefix string, disp Dispatcher) *Subscriber {
	return &Subscriber{
		nc:     nc,
		prefix: prefix,
		disp:   disp,
	}
}

// Subscribe joins the command and claim queue groups, so requests are
// spread across all gateway instances.
func (s *Subscriber) Subscribe() error {
	if s.nc == nil {
		return errors.New("natsio: connection to nats is missing")
	}

	sub, err := s.nc.QueueSubscribe(CommandSubject(s.prefix), s.prefix+".queue.command", func(msg *nats.Msg) {
		s.reply(msg, s.handleCommandRequest(msg.Data))
	})
	if err != nil {
		return errors.Wrap(err, "natsio: subscribe command")
	}
	s.subs = append(s.subs, sub)

	sub, err = s.nc.QueueSubscribe(ClaimSubject(s.prefix), s.prefix+".queue.claim", func(msg *nats.Msg) {
		s.reply(msg, s.handleClaimRequest(msg.Data))
	})
	if err != nil {
		return errors.Wrap(err, "natsio: subscribe claim")
	}
	s.subs = append(s.subs, sub)

	return nil
}

// Unsubscribe leaves all queue groups.
func (s *Subscriber) Unsubscribe() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warnf("natsio unsubscribe %s failed: %v", sub.Subject, err)
		}
	}
	s.subs = nil
}

func (s *Subscriber) handleCommandRequest(data []byte) *message.Reply {
	var req message.CommandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return newErrorReply(command.ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	res, err := s.disp.Command(ctx, command.CommandRequest{
		DeviceID: req.DeviceID,
		Type:     req.Type,
		Payload:  req.Payload,
	})
	if err != nil {
		return newErrorReply(err)
	}
	return newSuccessReply(res)
}

func (s *Subscriber) handleClaimRequest(data []byte) *message.Reply {
	var req message.ClaimRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return newErrorReply(command.ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	res, err := s.disp.Claim(ctx, command.ClaimRequest{
		DeviceID: req.DeviceID,
		AuthKey:  req.AuthKey,
		Name:     req.Name,
		UserID:   req.UserID,
	})
	if err != nil {
		return newErrorReply(err)
	}
	return newSuccessReply(res)
}

func (s *Subscriber) reply(msg *nats.Msg, rep *message.Reply) {
	if msg.Reply == "" {
		log.Warnf("natsio received request on %s without reply subject", msg.Subject)
		return
	}

	data, err := json.Marshal(rep)
	if err != nil {
		log.Errorf("natsio failed to marshal reply: %v", err)
		return
	}
	if err := s.nc.Publish(msg.Reply, data); err != nil {
		log.Errorf("natsio failed to publish reply: %v", err)
	}
}

func newSuccessReply(results interface{}) *message.Reply {
	return &message.Reply{
		Status:  message.ReplyStatusSuccess,
		Results: results,
	}
}

func newErrorReply(err error) *message.Reply {
	reason := command.Reason(err)
	if reason == command.ErrReasonTechnicalException {
		log.Errorf("natsio command request failed: %v", err)
		return &message.Reply{
			Status:      message.ReplyStatusError,
			ErrorReason: reason,
		}
	}
	return &message.Reply{
		Status:       message.ReplyStatusError,
		ErrorReason:  reason,
		ErrorDetails: err.Error(),
	}
}
