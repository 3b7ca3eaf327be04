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

func dhcpSpec(state models.State) models.ResourceSpec {
	return models.ResourceSpec{
		Type:  models.TypeDHCPOptions,
		Name:  "corp-dhcp",
		State: state,
		DHCPOptions: &models.DHCPOptionsSpec{
			DomainName:        "corp.internal",
			DomainNameServers: []string{"10.0.0.2", "10.0.0.3"},
			VpcID:             "vpc-0123",
		},
	}
}

func liveDHCPOptions() ec2types.DhcpOptions {
	return ec2types.DhcpOptions{
		DhcpOptionsId: aws.String("dopt-0123"),
		DhcpConfigurations: []ec2types.DhcpConfiguration{
			{
				Key: aws.String("domain-name"),
				Values: []ec2types.AttributeValue{
					{Value: aws.String("corp.internal")},
				},
			},
			{
				Key: aws.String("domain-name-servers"),
				Values: []ec2types.AttributeValue{
					{Value: aws.String("10.0.0.3")},
					{Value: aws.String("10.0.0.2")},
				},
			},
		},
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String("corp-dhcp")},
		},
	}
}

func TestReconcileDHCPOptionsCreatesAndAssociates(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{}, nil)
	m.EC2.On("CreateDhcpOptions", mock.Anything, mock.MatchedBy(func(in *ec2.CreateDhcpOptionsInput) bool {
		return len(in.DhcpConfigurations) == 2
	})).Return(&ec2.CreateDhcpOptionsOutput{
		DhcpOptions: &ec2types.DhcpOptions{DhcpOptionsId: aws.String("dopt-0456")},
	}, nil)
	m.EC2.On("AssociateDhcpOptions", mock.Anything, mock.MatchedBy(func(in *ec2.AssociateDhcpOptionsInput) bool {
		return aws.ToString(in.DhcpOptionsId) == "dopt-0456" && aws.ToString(in.VpcId) == "vpc-0123"
	})).Return(&ec2.AssociateDhcpOptionsOutput{}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), dhcpSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "dopt-0456", result.Output["dhcp_options_id"])
	m.EC2.AssertExpectations(t)
}

func TestReconcileDHCPOptionsMatchIgnoresValueOrder(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{
			DhcpOptions: []ec2types.DhcpOptions{liveDHCPOptions()},
		}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), dhcpSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.EC2.AssertNotCalled(t, "CreateDhcpOptions", mock.Anything, mock.Anything)
}

func TestReconcileDHCPOptionsRecreatesOnDrift(t *testing.T) {
	p, m := newTestProvider()

	spec := dhcpSpec(models.StatePresent)
	spec.DHCPOptions.NtpServers = []string{"10.0.0.4"}

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{
			DhcpOptions: []ec2types.DhcpOptions{liveDHCPOptions()},
		}, nil)
	m.EC2.On("CreateDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.CreateDhcpOptionsOutput{
			DhcpOptions: &ec2types.DhcpOptions{DhcpOptionsId: aws.String("dopt-0456")},
		}, nil)
	m.EC2.On("AssociateDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.AssociateDhcpOptionsOutput{}, nil)
	m.EC2.On("DeleteDhcpOptions", mock.Anything, mock.MatchedBy(func(in *ec2.DeleteDhcpOptionsInput) bool {
		return aws.ToString(in.DhcpOptionsId) == "dopt-0123"
	})).Return(&ec2.DeleteDhcpOptionsOutput{}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}

func TestReconcileDHCPOptionsCheckModeNeverMutates(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), dhcpSpec(models.StatePresent),
		ReconcileOptions{CheckMode: true})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertNotCalled(t, "CreateDhcpOptions", mock.Anything, mock.Anything)
	m.EC2.AssertNotCalled(t, "AssociateDhcpOptions", mock.Anything, mock.Anything)
}

func TestReconcileDHCPOptionsDelete(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{
			DhcpOptions: []ec2types.DhcpOptions{liveDHCPOptions()},
		}, nil)
	m.EC2.On("DescribeVpcs", mock.Anything, mock.Anything).
		Return(&ec2.DescribeVpcsOutput{}, nil)
	m.EC2.On("DeleteDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DeleteDhcpOptionsOutput{}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), dhcpSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertNotCalled(t, "AssociateDhcpOptions", mock.Anything, mock.Anything)
	m.EC2.AssertExpectations(t)
}

func TestReconcileDHCPOptionsDeleteDetachesVPCsFirst(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{
			DhcpOptions: []ec2types.DhcpOptions{liveDHCPOptions()},
		}, nil)
	m.EC2.On("DescribeVpcs", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeVpcsInput) bool {
		return len(in.Filters) == 1 && in.Filters[0].Values[0] == "dopt-0123"
	})).Return(&ec2.DescribeVpcsOutput{
		Vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-0123")}},
	}, nil)
	m.EC2.On("AssociateDhcpOptions", mock.Anything, mock.MatchedBy(func(in *ec2.AssociateDhcpOptionsInput) bool {
		return aws.ToString(in.DhcpOptionsId) == "default" && aws.ToString(in.VpcId) == "vpc-0123"
	})).Return(&ec2.AssociateDhcpOptionsOutput{}, nil)
	m.EC2.On("DeleteDhcpOptions", mock.Anything, mock.MatchedBy(func(in *ec2.DeleteDhcpOptionsInput) bool {
		return aws.ToString(in.DhcpOptionsId) == "dopt-0123"
	})).Return(&ec2.DeleteDhcpOptionsOutput{}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), dhcpSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}

func TestReconcileDHCPOptionsOmittedOptionsInherited(t *testing.T) {
	p, m := newTestProvider()

	// The spec drops domain-name-servers; matching must treat the live
	// value as still desired rather than recreating the set.
	spec := dhcpSpec(models.StatePresent)
	spec.DHCPOptions.DomainNameServers = nil

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{
			DhcpOptions: []ec2types.DhcpOptions{liveDHCPOptions()},
		}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.EC2.AssertNotCalled(t, "CreateDhcpOptions", mock.Anything, mock.Anything)
}

func TestReconcileDHCPOptionsRecreateCarriesOmittedOptions(t *testing.T) {
	p, m := newTestProvider()

	spec := dhcpSpec(models.StatePresent)
	spec.DHCPOptions.DomainNameServers = nil
	spec.DHCPOptions.NtpServers = []string{"10.0.0.4"}

	m.EC2.On("DescribeDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DescribeDhcpOptionsOutput{
			DhcpOptions: []ec2types.DhcpOptions{liveDHCPOptions()},
		}, nil)
	m.EC2.On("CreateDhcpOptions", mock.Anything, mock.MatchedBy(func(in *ec2.CreateDhcpOptionsInput) bool {
		keys := make(map[string]bool, len(in.DhcpConfigurations))
		for _, c := range in.DhcpConfigurations {
			keys[aws.ToString(c.Key)] = true
		}
		return len(in.DhcpConfigurations) == 3 &&
			keys["domain-name"] && keys["ntp-servers"] && keys["domain-name-servers"]
	})).Return(&ec2.CreateDhcpOptionsOutput{
		DhcpOptions: &ec2types.DhcpOptions{DhcpOptionsId: aws.String("dopt-0456")},
	}, nil)
	m.EC2.On("AssociateDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.AssociateDhcpOptionsOutput{}, nil)
	m.EC2.On("DeleteDhcpOptions", mock.Anything, mock.Anything).
		Return(&ec2.DeleteDhcpOptionsOutput{}, nil)

	result, err := p.reconcileDHCPOptions(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}
