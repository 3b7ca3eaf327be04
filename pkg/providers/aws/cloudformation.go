package awsprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

func (p *AWSProvider) reconcileStack(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	stack, err := p.describeStack(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack: %w", err)
	}

	if spec.State == models.StateAbsent {
		if stack == nil {
			return result, nil
		}
		result.Record("stack", string(stack.StackStatus), "absent")
		if opts.CheckMode {
			return result, nil
		}
		return result, p.deleteStack(ctx, spec.Name)
	}

	stackSpec := spec.Stack
	if stack == nil {
		result.Record("stack", "absent", "created")
		if opts.CheckMode {
			return result, nil
		}
		if err := p.createStack(ctx, spec, stackSpec, result); err != nil {
			return nil, err
		}
		return result, p.recordStackFacts(ctx, spec.Name, result)
	}

	// A stack stuck in ROLLBACK_COMPLETE can only be deleted.
	if stack.StackStatus == cfntypes.StackStatusRollbackComplete {
		return nil, fmt.Errorf(
			"stack %s is in ROLLBACK_COMPLETE and must be deleted before it can be recreated",
			spec.Name,
		)
	}
	if strings.HasSuffix(string(stack.StackStatus), "_IN_PROGRESS") {
		return nil, fmt.Errorf("stack %s has operation in progress (%s)",
			spec.Name, stack.StackStatus)
	}

	result.SetOutput("stack_id", aws.ToString(stack.StackId))
	if err := p.updateStack(ctx, spec, stackSpec, stack, result, opts); err != nil {
		return nil, err
	}
	if opts.CheckMode {
		return result, nil
	}
	return result, p.recordStackFacts(ctx, spec.Name, result)
}

// recordStackFacts reports the converged stack in the result output.
// The describe response is flattened to a map with snake_case keys, and
// template outputs are surfaced under their own key.
func (p *AWSProvider) recordStackFacts(
	ctx context.Context,
	name string,
	result *models.Result,
) error {
	stack, err := p.describeStack(ctx, name)
	if err != nil || stack == nil {
		return err
	}

	raw, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to serialize stack %s: %w", name, err)
	}
	var facts map[string]interface{}
	if err := json.Unmarshal(raw, &facts); err != nil {
		return fmt.Errorf("failed to serialize stack %s: %w", name, err)
	}
	result.SetOutput("stack", awsutil.SnakeCaseKeys(awsutil.ScrubNilParameters(facts)))

	if len(stack.Outputs) > 0 {
		outputs := make(map[string]string, len(stack.Outputs))
		for _, o := range stack.Outputs {
			outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
		}
		result.SetOutput("stack_outputs", outputs)
	}
	return nil
}

func (p *AWSProvider) createStack(
	ctx context.Context,
	spec models.ResourceSpec,
	stackSpec *models.StackSpec,
	result *models.Result,
) error {
	input := &cloudformation.CreateStackInput{
		StackName:       aws.String(spec.Name),
		Parameters:      stackParameters(stackSpec.Parameters),
		Capabilities:    stackCapabilities(stackSpec.Capabilities),
		Tags:            stackTags(spec.Tags),
		DisableRollback: aws.Bool(stackSpec.DisableRollback),
	}
	if stackSpec.TemplateBody != "" {
		input.TemplateBody = aws.String(stackSpec.TemplateBody)
	}
	if stackSpec.TemplateURL != "" {
		input.TemplateURL = aws.String(stackSpec.TemplateURL)
	}

	var out *cloudformation.CreateStackOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.CloudFormation.CreateStack(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create stack %s: %w", spec.Name, err)
	}
	result.SetOutput("stack_id", aws.ToString(out.StackId))

	return p.waitForStack(ctx, spec.Name, cfntypes.StackStatusCreateComplete)
}

func (p *AWSProvider) updateStack(
	ctx context.Context,
	spec models.ResourceSpec,
	stackSpec *models.StackSpec,
	stack *cfntypes.Stack,
	result *models.Result,
	opts ReconcileOptions,
) error {
	// CloudFormation owns the template diff: submit the update and treat
	// "No updates are to be performed" as the converged case. Check mode
	// must not create even a change set, so it compares the live
	// template and parameters instead.
	if opts.CheckMode {
		changed, err := p.stackWouldChange(ctx, stack, stackSpec)
		if err != nil {
			return err
		}
		if changed {
			result.Record("stack", string(stack.StackStatus), "updated")
		}
		return nil
	}

	input := &cloudformation.UpdateStackInput{
		StackName:    aws.String(spec.Name),
		Parameters:   stackParameters(stackSpec.Parameters),
		Capabilities: stackCapabilities(stackSpec.Capabilities),
		Tags:         stackTags(spec.Tags),
	}
	if stackSpec.TemplateBody != "" {
		input.TemplateBody = aws.String(stackSpec.TemplateBody)
	}
	if stackSpec.TemplateURL != "" {
		input.TemplateURL = aws.String(stackSpec.TemplateURL)
	}

	err := retry.Do(ctx, func() error {
		_, err := p.Clients.CloudFormation.UpdateStack(ctx, input)
		return err
	})
	if err != nil {
		if isNoUpdatesError(err) {
			return nil
		}
		return fmt.Errorf("failed to update stack %s: %w", spec.Name, err)
	}

	result.Record("stack", "updated", "in place")
	return p.waitForStack(ctx, spec.Name, cfntypes.StackStatusUpdateComplete)
}

// stackWouldChange compares the live template and parameters against
// the declared ones without any write calls. Remote template URLs
// cannot be fetched here, so they conservatively report a change.
func (p *AWSProvider) stackWouldChange(
	ctx context.Context,
	stack *cfntypes.Stack,
	stackSpec *models.StackSpec,
) (bool, error) {
	name := aws.ToString(stack.StackName)
	if stackSpec.TemplateURL != "" {
		return true, nil
	}

	var out *cloudformation.GetTemplateOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.CloudFormation.GetTemplate(ctx, &cloudformation.GetTemplateInput{
			StackName:     aws.String(name),
			TemplateStage: cfntypes.TemplateStageOriginal,
		})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to get template for stack %s: %w", name, err)
	}
	if !templatesEqual(aws.ToString(out.TemplateBody), stackSpec.TemplateBody) {
		return true, nil
	}

	current := make(map[string]string, len(stack.Parameters))
	for _, param := range stack.Parameters {
		current[aws.ToString(param.ParameterKey)] = aws.ToString(param.ParameterValue)
	}
	for k, v := range stackSpec.Parameters {
		if current[k] != v {
			return true, nil
		}
	}
	return false, nil
}

// templatesEqual ignores formatting differences between JSON templates;
// YAML templates compare as trimmed text.
func templatesEqual(a, b string) bool {
	var av, bv interface{}
	if json.Unmarshal([]byte(a), &av) == nil && json.Unmarshal([]byte(b), &bv) == nil {
		aj, _ := json.Marshal(av)
		bj, _ := json.Marshal(bv)
		return string(aj) == string(bj)
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

func (p *AWSProvider) deleteStack(ctx context.Context, name string) error {
	err := retry.Do(ctx, func() error {
		_, err := p.Clients.CloudFormation.DeleteStack(ctx, &cloudformation.DeleteStackInput{
			StackName: aws.String(name),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete stack %s: %w", name, err)
	}

	err = waiter.Wait(ctx, waiter.StackOperationComplete, func(ctx context.Context) (bool, error) {
		stack, err := p.describeStack(ctx, name)
		if err != nil {
			return false, err
		}
		if stack == nil || stack.StackStatus == cfntypes.StackStatusDeleteComplete {
			return true, nil
		}
		if stack.StackStatus == cfntypes.StackStatusDeleteFailed {
			reason, _ := p.stackFailureReason(ctx, name)
			return false, fmt.Errorf("stack %s failed to delete: %s", name, reason)
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("stack %s was not deleted: %w", name, err)
	}
	return nil
}

// waitForStack polls until the stack reaches the expected terminal
// status. Any other terminal status fails with the reason pulled from
// the stack events.
func (p *AWSProvider) waitForStack(
	ctx context.Context,
	name string,
	expected cfntypes.StackStatus,
) error {
	l := logger.Get()

	err := waiter.Wait(ctx, waiter.StackOperationComplete, func(ctx context.Context) (bool, error) {
		stack, err := p.describeStack(ctx, name)
		if err != nil {
			return false, err
		}
		if stack == nil {
			return false, fmt.Errorf("stack %s disappeared while waiting", name)
		}

		status := stack.StackStatus
		l.Debugf("Stack %s status: %s", name, status)
		if status == expected {
			return true, nil
		}
		if strings.HasSuffix(string(status), "_IN_PROGRESS") {
			return false, nil
		}

		// Any other terminal state means the operation failed.
		reason, _ := p.stackFailureReason(ctx, name)
		return false, fmt.Errorf("stack %s reached %s: %s", name, status, reason)
	})
	if err != nil {
		return fmt.Errorf("waiting for stack %s: %w", name, err)
	}
	return nil
}

// stackFailureReason digs the first resource failure out of the stack
// events, newest first.
func (p *AWSProvider) stackFailureReason(ctx context.Context, name string) (string, error) {
	var out *cloudformation.DescribeStackEventsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.CloudFormation.DescribeStackEvents(ctx,
			&cloudformation.DescribeStackEventsInput{
				StackName: aws.String(name),
			})
		return err
	})
	if err != nil {
		return "unknown (could not fetch stack events)", err
	}

	for _, event := range out.StackEvents {
		status := string(event.ResourceStatus)
		if strings.HasSuffix(status, "FAILED") && event.ResourceStatusReason != nil {
			return fmt.Sprintf("%s %s: %s",
				aws.ToString(event.LogicalResourceId), status,
				*event.ResourceStatusReason), nil
		}
	}
	return "no failure reason found in stack events", nil
}

func (p *AWSProvider) describeStack(ctx context.Context, name string) (*cfntypes.Stack, error) {
	var out *cloudformation.DescribeStacksOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(name),
		})
		return err
	})
	if err != nil {
		if isStackMissingError(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.Stacks) == 0 {
		return nil, nil
	}
	return &out.Stacks[0], nil
}

// CloudFormation reports a missing stack as a ValidationError whose
// message ends in "does not exist".
func isStackMissingError(err error) bool {
	if awsutil.IsNotFound(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func isNoUpdatesError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
	}
	return false
}

func stackParameters(params map[string]string) []cfntypes.Parameter {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]cfntypes.Parameter, 0, len(params))
	for _, k := range keys {
		result = append(result, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return result
}

func stackCapabilities(caps []string) []cfntypes.Capability {
	result := make([]cfntypes.Capability, 0, len(caps))
	for _, c := range caps {
		result = append(result, cfntypes.Capability(c))
	}
	return result
}

func stackTags(tags map[string]string) []cfntypes.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]cfntypes.Tag, 0, len(tags))
	for _, k := range keys {
		result = append(result, cfntypes.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return result
}
