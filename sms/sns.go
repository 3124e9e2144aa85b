package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	attrSMSType      = "AWS.SNS.SMS.SMSType"
	attrSenderID     = "AWS.SNS.SMS.SenderID"
	smsTransactional = "Transactional"
)

// ErrEmptyPhone is returned when Send is called without a destination.
var ErrEmptyPhone = errors.New("sms: empty phone")

var loadDefaultAWSConfig = config.LoadDefaultConfig

// PublishAPI is the subset of the SNS client used by SNSSender.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSOptions configures NewSNSSender.
type SNSOptions struct {
	Region   string
	SenderID string
	// Endpoint overrides the SNS endpoint, e.g. for localstack.
	Endpoint string
	// AccessKeyID and SecretAccessKey, when both set, replace the default
	// credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

// SNSSender delivers codes as transactional SMS.
type SNSSender struct {
	client   PublishAPI
	senderID string
}

// NewSNSSender loads the default AWS config for opts.Region and builds an
// SNS client from it.
func NewSNSSender(ctx context.Context, opts SNSOptions) (*SNSSender, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("sms: load aws config: %w", err)
	}

	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewSNSSenderWithClient(client, opts.SenderID), nil
}

// NewSNSSenderWithClient wraps an existing client.
func NewSNSSenderWithClient(client PublishAPI, senderID string) *SNSSender {
	return &SNSSender{client: client, senderID: strings.TrimSpace(senderID)}
}

// Send publishes message to phone and returns the SNS message id.
func (s *SNSSender) Send(ctx context.Context, phone, message string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	attrs := map[string]types.MessageAttributeValue{
		attrSMSType: {
			DataType:    aws.String("String"),
			StringValue: aws.String(smsTransactional),
		},
	}
	if s.senderID != "" {
		attrs[attrSenderID] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("sms: publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
