package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/mocks"
)

type (
	SubscriberServiceTestSuite struct {
		suite.Suite
		dedupRepo *mocks.DedupRepository
		metrics   *mocks.Metrics
		out       *bytes.Buffer
		service   SubscriberService
	}

	failingWriter struct{}
)

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestSubscriberServiceTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(SubscriberServiceTestSuite))
}

func (s *SubscriberServiceTestSuite) SetupTest() {
	s.dedupRepo = &mocks.DedupRepository{}
	s.metrics = &mocks.Metrics{}
	s.out = &bytes.Buffer{}
	s.service = NewSubscriberService(s.dedupRepo, s.out, infrastructure.NewTestLogger(), s.metrics)
}

func (s *SubscriberServiceTestSuite) TearDownTest() {
	s.dedupRepo.AssertExpectations(s.T())
	s.metrics.AssertExpectations(s.T())
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_WritesJSONLine() {
	msg := s.createMessage("msg-1")

	s.dedupRepo.On("MarkSeen", mock.Anything, "msg-1").Return(false, nil).Once()
	s.metrics.On("RecordRelay", mock.Anything, "relayed").Once()

	result, err := s.service.RelayMessage(s.T().Context(), msg)

	s.Require().NoError(err)
	s.True(result.Relayed)
	s.False(result.Duplicate)

	line := s.out.String()
	s.Require().True(len(line) > 0 && line[len(line)-1] == '\n')

	var got domain.RelayedMessage
	s.Require().NoError(json.Unmarshal([]byte(line), &got))
	s.Equal(msg.RoutingKey, got.RoutingKey)
	s.Equal(msg.MessageID, got.MessageID)
	s.JSONEq(string(msg.Body), string(got.Body))
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_Duplicate() {
	s.dedupRepo.On("MarkSeen", mock.Anything, "msg-1").Return(true, nil).Once()
	s.metrics.On("RecordRelay", mock.Anything, "duplicate").Once()

	result, err := s.service.RelayMessage(s.T().Context(), s.createMessage("msg-1"))

	s.Require().NoError(err)
	s.True(result.Duplicate)
	s.Zero(s.out.Len())
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_DedupErrorStillRelays() {
	s.dedupRepo.On("MarkSeen", mock.Anything, "msg-1").Return(false, errors.New("redis down")).Once()
	s.metrics.On("RecordRelay", mock.Anything, "relayed").Once()

	result, err := s.service.RelayMessage(s.T().Context(), s.createMessage("msg-1"))

	s.Require().NoError(err)
	s.True(result.Relayed)
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_WithoutMessageIDSkipsDedup() {
	s.metrics.On("RecordRelay", mock.Anything, "relayed").Once()

	result, err := s.service.RelayMessage(s.T().Context(), s.createMessage(""))

	s.Require().NoError(err)
	s.True(result.Relayed)
	s.dedupRepo.AssertNotCalled(s.T(), "MarkSeen", mock.Anything, mock.Anything)
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_EmptyBody() {
	s.metrics.On("RecordRelay", mock.Anything, "failed").Once()

	msg := s.createMessage("msg-1")
	msg.Body = json.RawMessage("null")

	_, err := s.service.RelayMessage(s.T().Context(), msg)

	s.Require().ErrorIs(err, domain.ErrEmptyBody)
	s.Zero(s.out.Len())
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_WriteFailureForgetsID() {
	s.service = NewSubscriberService(s.dedupRepo, failingWriter{}, infrastructure.NewTestLogger(), s.metrics)

	s.dedupRepo.On("MarkSeen", mock.Anything, "msg-1").Return(false, nil).Once()
	s.dedupRepo.On("Forget", mock.Anything, "msg-1").Return(nil).Once()
	s.metrics.On("RecordRelay", mock.Anything, "failed").Once()

	_, err := s.service.RelayMessage(s.T().Context(), s.createMessage("msg-1"))

	s.Require().ErrorContains(err, "broken pipe")
}

func (s *SubscriberServiceTestSuite) TestRelayMessage_NilDedupRepository() {
	s.service = NewSubscriberService(nil, s.out, infrastructure.NewTestLogger(), s.metrics)
	s.metrics.On("RecordRelay", mock.Anything, "relayed").Once()

	result, err := s.service.RelayMessage(s.T().Context(), s.createMessage("msg-1"))

	s.Require().NoError(err)
	s.True(result.Relayed)
}

func (s *SubscriberServiceTestSuite) createMessage(id string) domain.RelayedMessage {
	return domain.RelayedMessage{
		RoutingKey: "invoices.paid",
		MessageID:  id,
		ReceivedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Body:       json.RawMessage(`{"invoice":7}`),
	}
}
