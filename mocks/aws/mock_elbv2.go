package mocks

import (
	"context"

	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/stretchr/testify/mock"
)

// MockELBV2Client implements clients.ELBV2API for tests.
type MockELBV2Client struct {
	mock.Mock
}

func (m *MockELBV2Client) CreateLoadBalancer(ctx context.Context, params *elbv2.CreateLoadBalancerInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateLoadBalancerOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.CreateLoadBalancerOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.DescribeLoadBalancersOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) DeleteLoadBalancer(ctx context.Context, params *elbv2.DeleteLoadBalancerInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteLoadBalancerOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.DeleteLoadBalancerOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) SetSubnets(ctx context.Context, params *elbv2.SetSubnetsInput, optFns ...func(*elbv2.Options)) (*elbv2.SetSubnetsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.SetSubnetsOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) SetSecurityGroups(ctx context.Context, params *elbv2.SetSecurityGroupsInput, optFns ...func(*elbv2.Options)) (*elbv2.SetSecurityGroupsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.SetSecurityGroupsOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) SetIpAddressType(ctx context.Context, params *elbv2.SetIpAddressTypeInput, optFns ...func(*elbv2.Options)) (*elbv2.SetIpAddressTypeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.SetIpAddressTypeOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) ModifyLoadBalancerAttributes(ctx context.Context, params *elbv2.ModifyLoadBalancerAttributesInput, optFns ...func(*elbv2.Options)) (*elbv2.ModifyLoadBalancerAttributesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.ModifyLoadBalancerAttributesOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) DescribeLoadBalancerAttributes(ctx context.Context, params *elbv2.DescribeLoadBalancerAttributesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancerAttributesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.DescribeLoadBalancerAttributesOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) CreateListener(ctx context.Context, params *elbv2.CreateListenerInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateListenerOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.CreateListenerOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) DescribeListeners(ctx context.Context, params *elbv2.DescribeListenersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeListenersOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.DescribeListenersOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) ModifyListener(ctx context.Context, params *elbv2.ModifyListenerInput, optFns ...func(*elbv2.Options)) (*elbv2.ModifyListenerOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.ModifyListenerOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) DeleteListener(ctx context.Context, params *elbv2.DeleteListenerInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteListenerOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.DeleteListenerOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) AddTags(ctx context.Context, params *elbv2.AddTagsInput, optFns ...func(*elbv2.Options)) (*elbv2.AddTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.AddTagsOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) RemoveTags(ctx context.Context, params *elbv2.RemoveTagsInput, optFns ...func(*elbv2.Options)) (*elbv2.RemoveTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.RemoveTagsOutput)
	return out, args.Error(1)
}

func (m *MockELBV2Client) DescribeTags(ctx context.Context, params *elbv2.DescribeTagsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*elbv2.DescribeTagsOutput)
	return out, args.Error(1)
}
