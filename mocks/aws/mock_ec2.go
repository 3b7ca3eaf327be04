package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/mock"
)

// MockEC2Client implements clients.EC2API for tests.
type MockEC2Client struct {
	mock.Mock
}

func (m *MockEC2Client) CreateVpc(ctx context.Context, params *ec2.CreateVpcInput, optFns ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.CreateVpcOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeVpcsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeVpcAttribute(ctx context.Context, params *ec2.DescribeVpcAttributeInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcAttributeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeVpcAttributeOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) ModifyVpcAttribute(ctx context.Context, params *ec2.ModifyVpcAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.ModifyVpcAttributeOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DeleteVpc(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DeleteVpcOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.CreateTagsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DeleteTags(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DeleteTagsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) CreateDhcpOptions(ctx context.Context, params *ec2.CreateDhcpOptionsInput, optFns ...func(*ec2.Options)) (*ec2.CreateDhcpOptionsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.CreateDhcpOptionsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeDhcpOptions(ctx context.Context, params *ec2.DescribeDhcpOptionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeDhcpOptionsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeDhcpOptionsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) AssociateDhcpOptions(ctx context.Context, params *ec2.AssociateDhcpOptionsInput, optFns ...func(*ec2.Options)) (*ec2.AssociateDhcpOptionsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.AssociateDhcpOptionsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DeleteDhcpOptions(ctx context.Context, params *ec2.DeleteDhcpOptionsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteDhcpOptionsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DeleteDhcpOptionsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.CreateSecurityGroupOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeSecurityGroupsOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.AuthorizeSecurityGroupIngressOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) AuthorizeSecurityGroupEgress(ctx context.Context, params *ec2.AuthorizeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.AuthorizeSecurityGroupEgressOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.RevokeSecurityGroupIngressOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) RevokeSecurityGroupEgress(ctx context.Context, params *ec2.RevokeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.RevokeSecurityGroupEgressOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DeleteSecurityGroupOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.RunInstancesOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeInstancesOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.TerminateInstancesOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeImagesOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) CreateImage(ctx context.Context, params *ec2.CreateImageInput, optFns ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.CreateImageOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) RegisterImage(ctx context.Context, params *ec2.RegisterImageInput, optFns ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.RegisterImageOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DeregisterImage(ctx context.Context, params *ec2.DeregisterImageInput, optFns ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DeregisterImageOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) DescribeImageAttribute(ctx context.Context, params *ec2.DescribeImageAttributeInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImageAttributeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeImageAttributeOutput)
	return out, args.Error(1)
}

func (m *MockEC2Client) ModifyImageAttribute(ctx context.Context, params *ec2.ModifyImageAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyImageAttributeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.ModifyImageAttributeOutput)
	return out, args.Error(1)
}
