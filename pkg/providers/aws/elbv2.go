package awsprovider

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

func (p *AWSProvider) reconcileLoadBalancer(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findLoadBalancer(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe load balancer: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		arn := aws.ToString(existing.LoadBalancerArn)
		result.Record("load_balancer", arn, "absent")
		if opts.CheckMode {
			return result, nil
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.ELBV2.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{
				LoadBalancerArn: aws.String(arn),
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return nil, fmt.Errorf("failed to delete load balancer %s: %w", spec.Name, err)
		}
		return result, nil
	}

	lbSpec := spec.LoadBalancer
	if existing == nil {
		return p.createLoadBalancer(ctx, spec, lbSpec, opts, result)
	}

	arn := aws.ToString(existing.LoadBalancerArn)
	result.SetOutput("load_balancer_arn", arn)
	result.SetOutput("dns_name", aws.ToString(existing.DNSName))

	if string(existing.Type) != lbTypeOrDefault(lbSpec) {
		return nil, fmt.Errorf(
			"load balancer %s is type %s but spec wants %s; type cannot be changed in place",
			spec.Name, existing.Type, lbTypeOrDefault(lbSpec),
		)
	}
	if lbSpec.Scheme != "" && string(existing.Scheme) != lbSpec.Scheme {
		return nil, fmt.Errorf(
			"load balancer %s has scheme %s but spec wants %s; scheme cannot be changed in place",
			spec.Name, existing.Scheme, lbSpec.Scheme,
		)
	}

	if err := p.convergeLBNetworking(ctx, arn, existing, lbSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeLBAttributes(ctx, arn, lbSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeListeners(ctx, arn, lbSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeLBTags(ctx, arn, spec, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func lbTypeOrDefault(lbSpec *models.LoadBalancerSpec) string {
	if lbSpec.LBType == "" {
		return string(elbv2types.LoadBalancerTypeEnumApplication)
	}
	return lbSpec.LBType
}

func (p *AWSProvider) createLoadBalancer(
	ctx context.Context,
	spec models.ResourceSpec,
	lbSpec *models.LoadBalancerSpec,
	opts ReconcileOptions,
	result *models.Result,
) (*models.Result, error) {
	l := logger.Get()

	result.Record("load_balancer", "absent", spec.Name)
	if opts.CheckMode {
		return result, nil
	}

	input := &elbv2.CreateLoadBalancerInput{
		Name:    aws.String(spec.Name),
		Type:    elbv2types.LoadBalancerTypeEnum(lbTypeOrDefault(lbSpec)),
		Subnets: lbSpec.Subnets,
		Tags:    elbTags(namedTags(spec)),
	}
	if lbSpec.Scheme != "" {
		input.Scheme = elbv2types.LoadBalancerSchemeEnum(lbSpec.Scheme)
	}
	if lbSpec.IPAddressType != "" {
		input.IpAddressType = elbv2types.IpAddressType(lbSpec.IPAddressType)
	}
	if input.Type == elbv2types.LoadBalancerTypeEnumApplication {
		input.SecurityGroups = lbSpec.SecurityGroups
	}

	var created *elbv2.CreateLoadBalancerOutput
	err := retry.Do(ctx, func() error {
		var err error
		created, err = p.Clients.ELBV2.CreateLoadBalancer(ctx, input)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer %s: %w", spec.Name, err)
	}
	lb := created.LoadBalancers[0]
	arn := aws.ToString(lb.LoadBalancerArn)
	result.SetOutput("load_balancer_arn", arn)
	result.SetOutput("dns_name", aws.ToString(lb.DNSName))
	l.Infof("Created load balancer %s (%s)", spec.Name, arn)

	// Attribute and listener setup after creation either fully succeeds
	// or the load balancer is torn down again, so a failed run never
	// leaves a half-configured balancer behind.
	if err := p.convergeLBAttributes(ctx, arn, lbSpec, opts, result); err != nil {
		p.rollbackLoadBalancer(ctx, arn, spec.Name)
		return nil, err
	}
	if err := p.convergeListeners(ctx, arn, lbSpec, opts, result); err != nil {
		p.rollbackLoadBalancer(ctx, arn, spec.Name)
		return nil, err
	}

	if lbSpec.Wait {
		err := waiter.Wait(ctx, waiter.LoadBalancerActive, func(ctx context.Context) (bool, error) {
			current, err := p.findLoadBalancer(ctx, spec.Name)
			if err != nil || current == nil {
				return false, err
			}
			if current.State == nil {
				return false, nil
			}
			switch current.State.Code {
			case elbv2types.LoadBalancerStateEnumActive:
				return true, nil
			case elbv2types.LoadBalancerStateEnumFailed:
				return false, fmt.Errorf("load balancer %s entered failed state", spec.Name)
			default:
				return false, nil
			}
		})
		if err != nil {
			return nil, fmt.Errorf("load balancer %s did not become active: %w", spec.Name, err)
		}
	}
	return result, nil
}

func (p *AWSProvider) rollbackLoadBalancer(ctx context.Context, arn, name string) {
	l := logger.Get()
	l.Warnf("Rolling back load balancer %s after configuration failure", name)
	err := retry.Do(ctx, func() error {
		_, err := p.Clients.ELBV2.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{
			LoadBalancerArn: aws.String(arn),
		})
		return err
	})
	if err := awsutil.IgnoreNotFound(err); err != nil {
		l.Errorf("Rollback of load balancer %s failed, manual cleanup needed: %v", name, err)
	}
}

func (p *AWSProvider) convergeLBNetworking(
	ctx context.Context,
	arn string,
	existing *elbv2types.LoadBalancer,
	lbSpec *models.LoadBalancerSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	currentSubnets := make([]string, 0, len(existing.AvailabilityZones))
	for _, az := range existing.AvailabilityZones {
		currentSubnets = append(currentSubnets, aws.ToString(az.SubnetId))
	}
	if !sameStringSet(currentSubnets, lbSpec.Subnets) {
		result.Record("subnets", fmt.Sprintf("%v", currentSubnets), fmt.Sprintf("%v", lbSpec.Subnets))
		if !opts.CheckMode {
			err := retry.Do(ctx, func() error {
				_, err := p.Clients.ELBV2.SetSubnets(ctx, &elbv2.SetSubnetsInput{
					LoadBalancerArn: aws.String(arn),
					Subnets:         lbSpec.Subnets,
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to set subnets: %w", err)
			}
		}
	}

	if existing.Type == elbv2types.LoadBalancerTypeEnumApplication &&
		len(lbSpec.SecurityGroups) > 0 &&
		!sameStringSet(existing.SecurityGroups, lbSpec.SecurityGroups) {
		result.Record("security_groups",
			fmt.Sprintf("%v", existing.SecurityGroups),
			fmt.Sprintf("%v", lbSpec.SecurityGroups))
		if !opts.CheckMode {
			err := retry.Do(ctx, func() error {
				_, err := p.Clients.ELBV2.SetSecurityGroups(ctx, &elbv2.SetSecurityGroupsInput{
					LoadBalancerArn: aws.String(arn),
					SecurityGroups:  lbSpec.SecurityGroups,
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to set security groups: %w", err)
			}
		}
	}

	if lbSpec.IPAddressType != "" && string(existing.IpAddressType) != lbSpec.IPAddressType {
		result.Record("ip_address_type", string(existing.IpAddressType), lbSpec.IPAddressType)
		if !opts.CheckMode {
			err := retry.Do(ctx, func() error {
				_, err := p.Clients.ELBV2.SetIpAddressType(ctx, &elbv2.SetIpAddressTypeInput{
					LoadBalancerArn: aws.String(arn),
					IpAddressType:   elbv2types.IpAddressType(lbSpec.IPAddressType),
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to set IP address type: %w", err)
			}
		}
	}
	return nil
}

func (p *AWSProvider) convergeLBAttributes(
	ctx context.Context,
	arn string,
	lbSpec *models.LoadBalancerSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if len(lbSpec.Attributes) == 0 {
		return nil
	}

	current := map[string]string{}
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.ELBV2.DescribeLoadBalancerAttributes(ctx,
			&elbv2.DescribeLoadBalancerAttributesInput{
				LoadBalancerArn: aws.String(arn),
			})
		if err != nil {
			return err
		}
		for _, attr := range out.Attributes {
			current[aws.ToString(attr.Key)] = aws.ToString(attr.Value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to describe load balancer attributes: %w", err)
	}

	var toModify []elbv2types.LoadBalancerAttribute
	keys := make([]string, 0, len(lbSpec.Attributes))
	for k := range lbSpec.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		desired := lbSpec.Attributes[k]
		if current[k] == desired {
			continue
		}
		result.Record("attribute:"+k, current[k], desired)
		toModify = append(toModify, elbv2types.LoadBalancerAttribute{
			Key:   aws.String(k),
			Value: aws.String(desired),
		})
	}
	if opts.CheckMode || len(toModify) == 0 {
		return nil
	}

	err = retry.Do(ctx, func() error {
		_, err := p.Clients.ELBV2.ModifyLoadBalancerAttributes(ctx,
			&elbv2.ModifyLoadBalancerAttributesInput{
				LoadBalancerArn: aws.String(arn),
				Attributes:      toModify,
			})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to modify load balancer attributes: %w", err)
	}
	return nil
}

// convergeListeners aligns listeners by port: create missing ones,
// modify drifted ones, and remove unmanaged ports when purging.
func (p *AWSProvider) convergeListeners(
	ctx context.Context,
	arn string,
	lbSpec *models.LoadBalancerSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if len(lbSpec.Listeners) == 0 && !lbSpec.PurgeListeners {
		return nil
	}

	current := map[int32]elbv2types.Listener{}
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.ELBV2.DescribeListeners(ctx, &elbv2.DescribeListenersInput{
			LoadBalancerArn: aws.String(arn),
		})
		if err != nil {
			return err
		}
		for _, listener := range out.Listeners {
			current[aws.ToInt32(listener.Port)] = listener
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to describe listeners: %w", err)
	}

	desiredPorts := make(map[int32]struct{}, len(lbSpec.Listeners))
	for _, desired := range lbSpec.Listeners {
		desiredPorts[desired.Port] = struct{}{}
		live, exists := current[desired.Port]
		if !exists {
			result.Record(fmt.Sprintf("listener:%d", desired.Port), "absent",
				fmt.Sprintf("%s -> %s", desired.Protocol, desired.TargetGroupARN))
			if opts.CheckMode {
				continue
			}
			if err := p.createListener(ctx, arn, desired); err != nil {
				return err
			}
			continue
		}
		if listenerMatches(live, desired) {
			continue
		}
		result.Record(fmt.Sprintf("listener:%d", desired.Port),
			string(live.Protocol),
			fmt.Sprintf("%s -> %s", desired.Protocol, desired.TargetGroupARN))
		if opts.CheckMode {
			continue
		}
		if err := p.modifyListener(ctx, live, desired); err != nil {
			return err
		}
	}

	if lbSpec.PurgeListeners {
		ports := make([]int, 0, len(current))
		for port := range current {
			ports = append(ports, int(port))
		}
		sort.Ints(ports)
		for _, port := range ports {
			if _, ok := desiredPorts[int32(port)]; ok {
				continue
			}
			listener := current[int32(port)]
			result.Record(fmt.Sprintf("listener:%d", port), string(listener.Protocol), "absent")
			if opts.CheckMode {
				continue
			}
			err := retry.Do(ctx, func() error {
				_, err := p.Clients.ELBV2.DeleteListener(ctx, &elbv2.DeleteListenerInput{
					ListenerArn: listener.ListenerArn,
				})
				return err
			})
			if err := awsutil.IgnoreNotFound(err); err != nil {
				return fmt.Errorf("failed to delete listener on port %d: %w", port, err)
			}
		}
	}
	return nil
}

func (p *AWSProvider) createListener(
	ctx context.Context,
	arn string,
	desired models.ListenerSpec,
) error {
	input := &elbv2.CreateListenerInput{
		LoadBalancerArn: aws.String(arn),
		Port:            aws.Int32(desired.Port),
		Protocol:        elbv2types.ProtocolEnum(desired.Protocol),
		DefaultActions: []elbv2types.Action{{
			Type:           elbv2types.ActionTypeEnumForward,
			TargetGroupArn: aws.String(desired.TargetGroupARN),
		}},
	}
	if desired.SSLPolicy != "" {
		input.SslPolicy = aws.String(desired.SSLPolicy)
	}
	if desired.CertificateARN != "" {
		input.Certificates = []elbv2types.Certificate{
			{CertificateArn: aws.String(desired.CertificateARN)},
		}
	}

	err := retry.Do(ctx, func() error {
		_, err := p.Clients.ELBV2.CreateListener(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create listener on port %d: %w", desired.Port, err)
	}
	return nil
}

func (p *AWSProvider) modifyListener(
	ctx context.Context,
	live elbv2types.Listener,
	desired models.ListenerSpec,
) error {
	input := &elbv2.ModifyListenerInput{
		ListenerArn: live.ListenerArn,
		Protocol:    elbv2types.ProtocolEnum(desired.Protocol),
		DefaultActions: []elbv2types.Action{{
			Type:           elbv2types.ActionTypeEnumForward,
			TargetGroupArn: aws.String(desired.TargetGroupARN),
		}},
	}
	if desired.SSLPolicy != "" {
		input.SslPolicy = aws.String(desired.SSLPolicy)
	}
	if desired.CertificateARN != "" {
		input.Certificates = []elbv2types.Certificate{
			{CertificateArn: aws.String(desired.CertificateARN)},
		}
	}

	err := retry.Do(ctx, func() error {
		_, err := p.Clients.ELBV2.ModifyListener(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to modify listener on port %d: %w", desired.Port, err)
	}
	return nil
}

func listenerMatches(live elbv2types.Listener, desired models.ListenerSpec) bool {
	if string(live.Protocol) != desired.Protocol {
		return false
	}
	targetMatches := false
	for _, action := range live.DefaultActions {
		if action.Type == elbv2types.ActionTypeEnumForward &&
			aws.ToString(action.TargetGroupArn) == desired.TargetGroupARN {
			targetMatches = true
		}
	}
	if !targetMatches {
		return false
	}
	if desired.CertificateARN != "" {
		certMatches := false
		for _, cert := range live.Certificates {
			if aws.ToString(cert.CertificateArn) == desired.CertificateARN {
				certMatches = true
			}
		}
		if !certMatches {
			return false
		}
	}
	return true
}

func (p *AWSProvider) convergeLBTags(
	ctx context.Context,
	arn string,
	spec models.ResourceSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	current := map[string]string{}
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.ELBV2.DescribeTags(ctx, &elbv2.DescribeTagsInput{
			ResourceArns: []string{arn},
		})
		if err != nil {
			return err
		}
		for _, desc := range out.TagDescriptions {
			for _, tag := range desc.Tags {
				current[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to describe load balancer tags: %w", err)
	}

	toSet, toRemove := awsutil.CompareTags(current, namedTags(spec), spec.PurgeTags)
	if len(toSet) == 0 && len(toRemove) == 0 {
		return nil
	}
	for k, v := range toSet {
		result.Record("tag:"+k, current[k], v)
	}
	for _, k := range toRemove {
		result.Record("tag:"+k, current[k], "")
	}
	if opts.CheckMode {
		return nil
	}

	if len(toSet) > 0 {
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.ELBV2.AddTags(ctx, &elbv2.AddTagsInput{
				ResourceArns: []string{arn},
				Tags:         elbTags(toSet),
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to add load balancer tags: %w", err)
		}
	}
	if len(toRemove) > 0 {
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.ELBV2.RemoveTags(ctx, &elbv2.RemoveTagsInput{
				ResourceArns: []string{arn},
				TagKeys:      toRemove,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to remove load balancer tags: %w", err)
		}
	}
	return nil
}

func (p *AWSProvider) findLoadBalancer(
	ctx context.Context,
	name string,
) (*elbv2types.LoadBalancer, error) {
	var out *elbv2.DescribeLoadBalancersOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.ELBV2.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
			Names: []string{name},
		})
		return err
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.LoadBalancers) == 0 {
		return nil, nil
	}
	return &out.LoadBalancers[0], nil
}

func elbTags(tags map[string]string) []elbv2types.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]elbv2types.Tag, 0, len(tags))
	for _, k := range keys {
		result = append(result, elbv2types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return result
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
