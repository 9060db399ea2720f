package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

type Config struct {
	QueueName string
	Region    string
	Endpoint  string // optional, for LocalStack
}

type queueAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends task messages to an SQS queue. The queue URL is resolved
// once and cached.
type Publisher struct {
	api   queueAPI
	queue string

	mu  sync.Mutex
	url string
}

func New(ctx context.Context, cfg Config) (*Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Publisher{api: client, queue: cfg.QueueName}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg domain.TaskMessage) error {
	url, err := p.queueURL(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", msg.ID, err)
	}

	_, err = p.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send task %s: %w", msg.ID, err)
	}
	return nil
}

func (p *Publisher) queueURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url != "" {
		return p.url, nil
	}
	out, err := p.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(p.queue)})
	if err != nil {
		return "", fmt.Errorf("resolve queue %s: %w", p.queue, err)
	}
	p.url = aws.ToString(out.QueueUrl)
	return p.url, nil
}
