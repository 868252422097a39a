// internal/common/aws/aws_test.go
package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

type mockSNS struct {
	input *sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestMailer_SendEmail(t *testing.T) {
	api := &mockSES{}
	m := NewMailer(api, "noreply@portal.example")

	id, err := m.SendEmail(context.Background(), "wanjiru@example.com", "Payment verified", "Hello")

	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)
	assert.Equal(t, "noreply@portal.example", aws.ToString(api.input.Source))
	assert.Equal(t, []string{"wanjiru@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "Payment verified", aws.ToString(api.input.Message.Subject.Data))
	assert.Equal(t, "Hello", aws.ToString(api.input.Message.Body.Text.Data))

	api.err = errors.New("throttled")
	_, err = m.SendEmail(context.Background(), "wanjiru@example.com", "s", "b")
	assert.ErrorContains(t, err, "throttled")
}

func TestTexter_SendSMS(t *testing.T) {
	api := &mockSNS{}
	tx := NewTexter(api, "PORTAL")

	id, err := tx.SendSMS(context.Background(), "254712345678", "Verified")

	require.NoError(t, err)
	assert.Equal(t, "sns-1", id)
	assert.Equal(t, "+254712345678", aws.ToString(api.input.PhoneNumber))
	assert.Equal(t, "PORTAL", aws.ToString(api.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	assert.Equal(t, "Transactional", aws.ToString(api.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))

	noSender := NewTexter(api, "")
	_, err = noSender.SendSMS(context.Background(), "+254712345678", "Verified")
	require.NoError(t, err)
	assert.Equal(t, "+254712345678", aws.ToString(api.input.PhoneNumber))
	assert.NotContains(t, api.input.MessageAttributes, "AWS.SNS.SMS.SenderID")
}
