package awsprovider

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amarra-project/amarra/pkg/models"
)

func stackSpec(state models.State) models.ResourceSpec {
	return models.ResourceSpec{
		Type:  models.TypeCloudFormation,
		Name:  "app-stack",
		State: state,
		Stack: &models.StackSpec{
			TemplateBody: `{"Resources":{"Bucket":{"Type":"AWS::S3::Bucket"}}}`,
			Parameters:   map[string]string{"Env": "test"},
		},
	}
}

func stackMissingErr() error {
	return &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "Stack with id app-stack does not exist",
	}
}

func describedStack(status cfntypes.StackStatus) *cloudformation.DescribeStacksOutput {
	return &cloudformation.DescribeStacksOutput{
		Stacks: []cfntypes.Stack{{
			StackId:     aws.String("arn:aws:cloudformation:us-east-1:123456789012:stack/app-stack/abc"),
			StackName:   aws.String("app-stack"),
			StackStatus: status,
		}},
	}
}

func TestReconcileStackCreates(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(nil, stackMissingErr()).Once()
	m.CloudFormation.On("CreateStack", mock.Anything, mock.MatchedBy(func(in *cloudformation.CreateStackInput) bool {
		return aws.ToString(in.StackName) == "app-stack" && len(in.Parameters) == 1
	})).Return(&cloudformation.CreateStackOutput{
		StackId: aws.String("arn:aws:cloudformation:us-east-1:123456789012:stack/app-stack/abc"),
	}, nil)
	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusCreateComplete), nil)

	result, err := p.reconcileStack(context.Background(), stackSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)

	facts, ok := result.Output["stack"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "app-stack", facts["stack_name"])
	assert.Equal(t, "CREATE_COMPLETE", facts["stack_status"])
	m.CloudFormation.AssertExpectations(t)
}

func TestReconcileStackCreateFailureSurfacesEventReason(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(nil, stackMissingErr()).Once()
	m.CloudFormation.On("CreateStack", mock.Anything, mock.Anything).
		Return(&cloudformation.CreateStackOutput{StackId: aws.String("stack-id")}, nil)
	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusRollbackComplete), nil)
	m.CloudFormation.On("DescribeStackEvents", mock.Anything, mock.Anything).
		Return(&cloudformation.DescribeStackEventsOutput{
			StackEvents: []cfntypes.StackEvent{{
				LogicalResourceId:    aws.String("Bucket"),
				ResourceStatus:       cfntypes.ResourceStatusCreateFailed,
				ResourceStatusReason: aws.String("bucket name already taken"),
			}},
		}, nil)

	_, err := p.reconcileStack(context.Background(), stackSpec(models.StatePresent), ReconcileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name already taken")
}

func TestReconcileStackNoUpdatesIsConverged(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusCreateComplete), nil)
	m.CloudFormation.On("UpdateStack", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{
			Code:    "ValidationError",
			Message: "No updates are to be performed.",
		})

	result, err := p.reconcileStack(context.Background(), stackSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestReconcileStackUpdates(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusCreateComplete), nil).Once()
	m.CloudFormation.On("UpdateStack", mock.Anything, mock.Anything).
		Return(&cloudformation.UpdateStackOutput{}, nil)
	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusUpdateComplete), nil)

	result, err := p.reconcileStack(context.Background(), stackSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.CloudFormation.AssertExpectations(t)
}

func TestReconcileStackRollbackCompleteIsAnError(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusRollbackComplete), nil)

	_, err := p.reconcileStack(context.Background(), stackSpec(models.StatePresent), ReconcileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLLBACK_COMPLETE")
	m.CloudFormation.AssertNotCalled(t, "UpdateStack", mock.Anything, mock.Anything)
}

func TestReconcileStackCheckModeReportsTemplateDrift(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusCreateComplete), nil)
	m.CloudFormation.On("GetTemplate", mock.Anything, mock.Anything).
		Return(&cloudformation.GetTemplateOutput{
			TemplateBody: aws.String(`{"Resources":{"Queue":{"Type":"AWS::SQS::Queue"}}}`),
		}, nil)

	result, err := p.reconcileStack(context.Background(), stackSpec(models.StatePresent),
		ReconcileOptions{CheckMode: true})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.CloudFormation.AssertNotCalled(t, "UpdateStack", mock.Anything, mock.Anything)
	m.CloudFormation.AssertNotCalled(t, "CreateStack", mock.Anything, mock.Anything)
}

func TestReconcileStackCheckModeConvergedReportsNoChange(t *testing.T) {
	p, m := newTestProvider()

	spec := stackSpec(models.StatePresent)
	live := describedStack(cfntypes.StackStatusCreateComplete)
	live.Stacks[0].Parameters = []cfntypes.Parameter{{
		ParameterKey:   aws.String("Env"),
		ParameterValue: aws.String("test"),
	}}

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(live, nil)
	// Same template, different formatting.
	m.CloudFormation.On("GetTemplate", mock.Anything, mock.Anything).
		Return(&cloudformation.GetTemplateOutput{
			TemplateBody: aws.String("{\n  \"Resources\": {\n    \"Bucket\": {\"Type\": \"AWS::S3::Bucket\"}\n  }\n}"),
		}, nil)

	result, err := p.reconcileStack(context.Background(), spec, ReconcileOptions{CheckMode: true})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.CloudFormation.AssertNotCalled(t, "UpdateStack", mock.Anything, mock.Anything)
}

func TestReconcileStackCheckModeParameterDrift(t *testing.T) {
	p, m := newTestProvider()

	spec := stackSpec(models.StatePresent)
	live := describedStack(cfntypes.StackStatusCreateComplete)
	live.Stacks[0].Parameters = []cfntypes.Parameter{{
		ParameterKey:   aws.String("Env"),
		ParameterValue: aws.String("staging"),
	}}

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(live, nil)
	m.CloudFormation.On("GetTemplate", mock.Anything, mock.Anything).
		Return(&cloudformation.GetTemplateOutput{
			TemplateBody: aws.String(spec.Stack.TemplateBody),
		}, nil)

	result, err := p.reconcileStack(context.Background(), spec, ReconcileOptions{CheckMode: true})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.CloudFormation.AssertNotCalled(t, "UpdateStack", mock.Anything, mock.Anything)
}

func TestReconcileStackDelete(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(describedStack(cfntypes.StackStatusCreateComplete), nil).Once()
	m.CloudFormation.On("DeleteStack", mock.Anything, mock.Anything).
		Return(&cloudformation.DeleteStackOutput{}, nil)
	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(nil, stackMissingErr())

	result, err := p.reconcileStack(context.Background(), stackSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.CloudFormation.AssertExpectations(t)
}

func TestReconcileStackDeleteAbsentIsNoop(t *testing.T) {
	p, m := newTestProvider()

	m.CloudFormation.On("DescribeStacks", mock.Anything, mock.Anything).
		Return(nil, stackMissingErr())

	result, err := p.reconcileStack(context.Background(), stackSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.CloudFormation.AssertNotCalled(t, "DeleteStack", mock.Anything, mock.Anything)
}
