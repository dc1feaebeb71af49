// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"golang.org/x/time/rate"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// DefaultRequestsPerSecond keeps DescribeServices calls well below the ECS API throttle.
const DefaultRequestsPerSecond = 5

// ECSAPI is the subset of the ECS client the task counter uses.
type ECSAPI interface {
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
}

// ECSConfig names the bot service. Empty names default to the environment's.
type ECSConfig struct {
	Environment string
	Cluster     string
	Service     string
	// RequestsPerSecond bounds DescribeServices calls; zero uses DefaultRequestsPerSecond.
	RequestsPerSecond float64
}

// ClusterName returns the cluster of an environment.
func ClusterName(environment string) string {
	return fmt.Sprintf("primary-%s", environment)
}

// ServiceName returns the bot service of an environment.
func ServiceName(environment string) string {
	return fmt.Sprintf("meet-bot-%s", environment)
}

// ECSTaskCounter reads the bot service's task counts from Amazon ECS.
type ECSTaskCounter struct {
	client  ECSAPI
	cluster string
	service string
	limiter *rate.Limiter
}

// NewECSTaskCounter creates a task counter for the configured service.
func NewECSTaskCounter(client ECSAPI, config ECSConfig) *ECSTaskCounter {
	cluster := config.Cluster
	if cluster == "" {
		cluster = ClusterName(config.Environment)
	}
	service := config.Service
	if service == "" {
		service = ServiceName(config.Environment)
	}
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &ECSTaskCounter{
		client:  client,
		cluster: cluster,
		service: service,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// TaskCount returns the desired, running and pending task counts of the service.
func (c *ECSTaskCounter) TaskCount(ctx context.Context) (*models.TaskCounts, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for ECS rate limiter: %w", err)
	}

	out, err := c.client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(c.cluster),
		Services: []string{c.service},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %s: %w", c.service, err)
	}
	if len(out.Services) == 0 {
		return nil, fmt.Errorf("service %s not found in cluster %s", c.service, c.cluster)
	}

	svc := out.Services[0]
	counts := &models.TaskCounts{
		Desired:     svc.DesiredCount,
		Running:     svc.RunningCount,
		Pending:     svc.PendingCount,
		ServiceName: c.service,
		ClusterName: c.cluster,
		Status:      aws.ToString(svc.Status),
	}
	slog.DebugContext(ctx, "ecs task counts",
		"desired", counts.Desired,
		"running", counts.Running,
		"pending", counts.Pending,
	)
	return counts, nil
}
