package events

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/spectrumoj/judge/api"
)

// NatsSink publishes progress events as JSON to a NATS subject.
type NatsSink struct {
	nc      *nats.Conn
	subject string
}

var _ Sink = (*NatsSink)(nil)

func NewNatsSink(nc *nats.Conn, subject string) *NatsSink {
	return &NatsSink{nc: nc, subject: subject}
}

func (s *NatsSink) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message: %v", err)
		return
	}

	if err := s.nc.Publish(s.subject, b); err != nil {
		log.Printf("failed to publish message to NATS: %v", err)
	}
}

func (s *NatsSink) header(subID string, msgType string) Header {
	return Header{SubmissionID: subID, MsgType: msgType}
}

func (s *NatsSink) StartEvaluation(subID string) {
	s.send(StartedEvaluation{Header: s.header(subID, MsgTypeStartedEvaluation)})
}

func (s *NatsSink) StartCompilation(subID string) {
	s.send(StartedCompilation{Header: s.header(subID, MsgTypeStartedCompilation)})
}

func (s *NatsSink) FinishCompilation(subID string, stats *RunStats) {
	s.send(FinishedCompilation{
		Header:   s.header(subID, MsgTypeFinishedCompilation),
		RunStats: stats,
	})
}

func (s *NatsSink) ReachTest(subID string, ordinal int) {
	s.send(ReachedTest{
		Header:  s.header(subID, MsgTypeReachedTest),
		Ordinal: ordinal,
	})
}

func (s *NatsSink) FinishTest(subID string, res api.TestResult) {
	res.Stdout = TrimToRectangle(res.Stdout, MaxPayloadHeight, MaxPayloadWidth)
	res.Stderr = TrimToRectangle(res.Stderr, MaxPayloadHeight, MaxPayloadWidth)
	s.send(FinishedTest{
		Header: s.header(subID, MsgTypeFinishedTest),
		Result: res,
	})
}

func (s *NatsSink) FinishEvaluation(subID string, verdict api.Verdict, errMsg string) {
	s.send(FinishedEvaluation{
		Header:       s.header(subID, MsgTypeFinishedEvaluation),
		Verdict:      verdict,
		ErrorMessage: errMsg,
	})
}
