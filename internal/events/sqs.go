package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spectrumoj/judge/api"
)

// SqsSink mirrors progress events to an SQS result queue.
type SqsSink struct {
	sqsClient *sqs.Client
	queueUrl  string
}

var _ Sink = (*SqsSink)(nil)

func NewSqsSink(ctx context.Context, queueUrl string) (*SqsSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &SqsSink{
		sqsClient: sqs.NewFromConfig(cfg),
		queueUrl:  queueUrl,
	}, nil
}

func (s *SqsSink) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message: %v", err)
		return
	}

	_, err = s.sqsClient.SendMessage(context.TODO(), &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		log.Printf("failed to send message to SQS: %v", err)
	}
}

func (s *SqsSink) header(subID string, msgType string) Header {
	return Header{SubmissionID: subID, MsgType: msgType}
}

func (s *SqsSink) StartEvaluation(subID string) {
	s.send(StartedEvaluation{Header: s.header(subID, MsgTypeStartedEvaluation)})
}

func (s *SqsSink) StartCompilation(subID string) {
	s.send(StartedCompilation{Header: s.header(subID, MsgTypeStartedCompilation)})
}

func (s *SqsSink) FinishCompilation(subID string, stats *RunStats) {
	s.send(FinishedCompilation{
		Header:   s.header(subID, MsgTypeFinishedCompilation),
		RunStats: stats,
	})
}

func (s *SqsSink) ReachTest(subID string, ordinal int) {
	s.send(ReachedTest{
		Header:  s.header(subID, MsgTypeReachedTest),
		Ordinal: ordinal,
	})
}

func (s *SqsSink) FinishTest(subID string, res api.TestResult) {
	res.Stdout = TrimToRectangle(res.Stdout, MaxPayloadHeight, MaxPayloadWidth)
	res.Stderr = TrimToRectangle(res.Stderr, MaxPayloadHeight, MaxPayloadWidth)
	s.send(FinishedTest{
		Header: s.header(subID, MsgTypeFinishedTest),
		Result: res,
	})
}

func (s *SqsSink) FinishEvaluation(subID string, verdict api.Verdict, errMsg string) {
	s.send(FinishedEvaluation{
		Header:       s.header(subID, MsgTypeFinishedEvaluation),
		Verdict:      verdict,
		ErrorMessage: errMsg,
	})
}
