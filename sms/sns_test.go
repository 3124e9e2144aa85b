package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSSenderPublishesTransactional(t *testing.T) {
	pub := &fakePublisher{}
	sender := NewSNSSenderWithClient(pub, " PhoneVrfy ")

	id, err := sender.Send(context.Background(), "+64223062141", "Your code is: 123456")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.NotNil(t, pub.input)
	assert.Equal(t, "+64223062141", aws.ToString(pub.input.PhoneNumber))
	assert.Equal(t, "Your code is: 123456", aws.ToString(pub.input.Message))
	assert.Equal(t, "Transactional", aws.ToString(pub.input.MessageAttributes[attrSMSType].StringValue))
	assert.Equal(t, "PhoneVrfy", aws.ToString(pub.input.MessageAttributes[attrSenderID].StringValue))
}

func TestSNSSenderOmitsEmptySenderID(t *testing.T) {
	pub := &fakePublisher{}
	sender := NewSNSSenderWithClient(pub, "")

	_, err := sender.Send(context.Background(), "+64223062141", "hi")
	require.NoError(t, err)
	_, ok := pub.input.MessageAttributes[attrSenderID]
	assert.False(t, ok)
}

func TestSNSSenderErrors(t *testing.T) {
	boom := errors.New("throttled")
	sender := NewSNSSenderWithClient(&fakePublisher{err: boom}, "")

	_, err := sender.Send(context.Background(), "+64223062141", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = sender.Send(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrEmptyPhone)
}

func TestNewSNSSenderConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	boom := errors.New("no config")
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, boom
	}

	_, err := NewSNSSender(context.Background(), SNSOptions{Region: "ap-southeast-2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNewSNSSenderBuildsClient(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	var optCount int
	loadDefaultAWSConfig = func(_ context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		optCount = len(optFns)
		return aws.Config{Region: "ap-southeast-2"}, nil
	}

	sender, err := NewSNSSender(context.Background(), SNSOptions{
		Region:          "ap-southeast-2",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, sender)
	assert.Equal(t, 2, optCount)
}
