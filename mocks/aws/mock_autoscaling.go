package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/stretchr/testify/mock"
)

// MockAutoScalingClient implements clients.AutoScalingAPI for tests.
type MockAutoScalingClient struct {
	mock.Mock
}

func (m *MockAutoScalingClient) CreateAutoScalingGroup(ctx context.Context, params *autoscaling.CreateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.CreateAutoScalingGroupOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*autoscaling.CreateAutoScalingGroupOutput)
	return out, args.Error(1)
}

func (m *MockAutoScalingClient) UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*autoscaling.UpdateAutoScalingGroupOutput)
	return out, args.Error(1)
}

func (m *MockAutoScalingClient) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*autoscaling.DescribeAutoScalingGroupsOutput)
	return out, args.Error(1)
}

func (m *MockAutoScalingClient) DeleteAutoScalingGroup(ctx context.Context, params *autoscaling.DeleteAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DeleteAutoScalingGroupOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*autoscaling.DeleteAutoScalingGroupOutput)
	return out, args.Error(1)
}

func (m *MockAutoScalingClient) CreateOrUpdateTags(ctx context.Context, params *autoscaling.CreateOrUpdateTagsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.CreateOrUpdateTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*autoscaling.CreateOrUpdateTagsOutput)
	return out, args.Error(1)
}

func (m *MockAutoScalingClient) DeleteTags(ctx context.Context, params *autoscaling.DeleteTagsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DeleteTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*autoscaling.DeleteTagsOutput)
	return out, args.Error(1)
}
