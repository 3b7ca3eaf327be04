package awsprovider

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amarra-project/amarra/pkg/models"
)

func vpcSpec(state models.State) models.ResourceSpec {
	return models.ResourceSpec{
		Type:  models.TypeVPC,
		Name:  "test-vpc",
		State: state,
		Tags:  map[string]string{"env": "test"},
		VPC: &models.VPCSpec{
			CidrBlock:        "10.0.0.0/16",
			EnableDnsSupport: aws.Bool(true),
		},
	}
}

func existingVPC() ec2types.Vpc {
	return ec2types.Vpc{
		VpcId:     aws.String("vpc-0123"),
		CidrBlock: aws.String("10.0.0.0/16"),
		State:     ec2types.VpcStateAvailable,
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String("test-vpc")},
			{Key: aws.String("env"), Value: aws.String("test")},
		},
	}
}

func TestReconcileVPCCreates(t *testing.T) {
	p, m := newTestProvider()

	// Lookup by Name tag finds nothing.
	m.EC2.On("DescribeVpcs", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeVpcsInput) bool {
		return len(in.Filters) > 0
	})).Return(&ec2.DescribeVpcsOutput{}, nil)

	m.EC2.On("CreateVpc", mock.Anything, mock.MatchedBy(func(in *ec2.CreateVpcInput) bool {
		return aws.ToString(in.CidrBlock) == "10.0.0.0/16" && len(in.TagSpecifications) == 1
	})).Return(&ec2.CreateVpcOutput{
		Vpc: &ec2types.Vpc{VpcId: aws.String("vpc-0123"), State: ec2types.VpcStatePending},
	}, nil)

	// Waiter polls by ID until available.
	m.EC2.On("DescribeVpcs", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeVpcsInput) bool {
		return len(in.VpcIds) == 1 && in.VpcIds[0] == "vpc-0123"
	})).Return(&ec2.DescribeVpcsOutput{
		Vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-0123"), State: ec2types.VpcStateAvailable}},
	}, nil)

	m.EC2.On("DescribeVpcAttribute", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcAttributeOutput{
			EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		}, nil)

	result, err := p.reconcileVPC(context.Background(), vpcSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "vpc-0123", result.Output["vpc_id"])
	m.EC2.AssertExpectations(t)
}

func TestReconcileVPCAlreadyConverged(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{existingVPC()}}, nil)
	m.EC2.On("DescribeVpcAttribute", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcAttributeOutput{
			EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		}, nil)

	result, err := p.reconcileVPC(context.Background(), vpcSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.EC2.AssertNotCalled(t, "CreateVpc", mock.Anything, mock.Anything)
	m.EC2.AssertNotCalled(t, "ModifyVpcAttribute", mock.Anything, mock.Anything)
	m.EC2.AssertNotCalled(t, "CreateTags", mock.Anything, mock.Anything)
}

func TestReconcileVPCConvergesAttributeDrift(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{existingVPC()}}, nil)
	m.EC2.On("DescribeVpcAttribute", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcAttributeOutput{
			EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(false)},
		}, nil)
	m.EC2.On("ModifyVpcAttribute", mock.Anything, mock.Anything).
		Return(&ec2.ModifyVpcAttributeOutput{}, nil)

	result, err := p.reconcileVPC(context.Background(), vpcSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "enable_dns_support", result.Changes[0].Field)
	m.EC2.AssertExpectations(t)
}

func TestReconcileVPCCheckModeNeverMutates(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{existingVPC()}}, nil)
	m.EC2.On("DescribeVpcAttribute", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcAttributeOutput{
			EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(false)},
		}, nil)

	result, err := p.reconcileVPC(context.Background(), vpcSpec(models.StatePresent),
		ReconcileOptions{CheckMode: true})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertNotCalled(t, "ModifyVpcAttribute", mock.Anything, mock.Anything)
	m.EC2.AssertNotCalled(t, "CreateTags", mock.Anything, mock.Anything)
}

func TestReconcileVPCCidrDriftIsAnError(t *testing.T) {
	p, m := newTestProvider()

	drifted := existingVPC()
	drifted.CidrBlock = aws.String("172.16.0.0/16")
	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{drifted}}, nil)

	_, err := p.reconcileVPC(context.Background(), vpcSpec(models.StatePresent), ReconcileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be changed in place")
}

func TestReconcileVPCDelete(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{existingVPC()}}, nil)
	m.EC2.On("DeleteVpc", mock.Anything, mock.MatchedBy(func(in *ec2.DeleteVpcInput) bool {
		return aws.ToString(in.VpcId) == "vpc-0123"
	})).Return(&ec2.DeleteVpcOutput{}, nil)

	result, err := p.reconcileVPC(context.Background(), vpcSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}

func TestReconcileVPCDeleteAbsentIsNoop(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{}, nil)

	result, err := p.reconcileVPC(context.Background(), vpcSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.EC2.AssertNotCalled(t, "DeleteVpc", mock.Anything, mock.Anything)
}
