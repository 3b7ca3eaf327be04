package awsprovider

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
)

// ruleKey is the canonical identity of one permission tuple. EC2
// collapses rules into grouped IpPermissions, so both sides are
// exploded into tuples before comparison.
type ruleKey struct {
	protocol string
	fromPort int32
	toPort   int32
	cidr     string
}

func (k ruleKey) String() string {
	return fmt.Sprintf("%s:%d-%d:%s", k.protocol, k.fromPort, k.toPort, k.cidr)
}

func (p *AWSProvider) reconcileSecurityGroup(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findSecurityGroup(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to describe security group: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		result.Record("security_group", *existing.GroupId, "absent")
		if opts.CheckMode {
			return result, nil
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
				GroupId: existing.GroupId,
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return nil, fmt.Errorf("failed to delete security group %s: %w",
				*existing.GroupId, err)
		}
		return result, nil
	}

	sgSpec := spec.SecurityGroup
	var groupID string
	var currentIngress, currentEgress []ec2types.IpPermission
	currentTags := map[string]string{}

	if existing == nil {
		result.Record("security_group", "absent", spec.Name)
		if opts.CheckMode {
			// Report the whole desired rule set as pending changes.
			recordRuleChanges(result, "ingress", nil, explodeSpecRules(sgSpec.Ingress), nil, false)
			recordRuleChanges(result, "egress", nil, explodeSpecRules(sgSpec.Egress), nil, false)
			return result, nil
		}

		var created *ec2.CreateSecurityGroupOutput
		err := retry.Do(ctx, func() error {
			var err error
			created, err = p.Clients.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
				GroupName:   aws.String(spec.Name),
				Description: aws.String(sgSpec.Description),
				VpcId:       aws.String(sgSpec.VpcID),
				TagSpecifications: awsutil.TagSpecification(
					ec2types.ResourceTypeSecurityGroup, namedTags(spec),
				),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create security group: %w", err)
		}
		groupID = *created.GroupId
		// A fresh group has the default allow-all egress rule.
		currentEgress = []ec2types.IpPermission{{
			IpProtocol: aws.String("-1"),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}}
	} else {
		groupID = *existing.GroupId
		currentIngress = existing.IpPermissions
		currentEgress = existing.IpPermissionsEgress
		currentTags = awsutil.TagsToMap(existing.Tags)
	}
	result.SetOutput("group_id", groupID)

	if err := p.convergeRules(
		ctx, groupID, "ingress", currentIngress, sgSpec.Ingress, sgSpec.PurgeRules, opts, result,
	); err != nil {
		return nil, err
	}
	// Egress convergence is only attempted when the spec declares egress
	// rules; otherwise the group keeps the EC2 default.
	if len(sgSpec.Egress) > 0 {
		if err := p.convergeRules(
			ctx, groupID, "egress", currentEgress, sgSpec.Egress, sgSpec.PurgeRules, opts, result,
		); err != nil {
			return nil, err
		}
	}

	if existing != nil {
		if err := p.convergeEC2Tags(ctx, groupID, currentTags, spec, opts, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *AWSProvider) convergeRules(
	ctx context.Context,
	groupID string,
	direction string,
	current []ec2types.IpPermission,
	desired []models.SecurityGroupRule,
	purge bool,
	opts ReconcileOptions,
	result *models.Result,
) error {
	currentSet := explodePermissions(current)
	desiredSet := explodeSpecRules(desired)

	var toAuthorize, toRevoke []ruleKey
	for key := range desiredSet {
		if _, ok := currentSet[key]; !ok {
			toAuthorize = append(toAuthorize, key)
		}
	}
	if purge {
		for key := range currentSet {
			if _, ok := desiredSet[key]; !ok {
				toRevoke = append(toRevoke, key)
			}
		}
	}
	sortRuleKeys(toAuthorize)
	sortRuleKeys(toRevoke)

	recordRuleChanges(result, direction, toAuthorize, desiredSet, toRevoke, true)
	if opts.CheckMode || (len(toAuthorize) == 0 && len(toRevoke) == 0) {
		return nil
	}

	if len(toAuthorize) > 0 {
		perms := permissionsFromKeys(toAuthorize, desired)
		err := retry.Do(ctx, func() error {
			var err error
			if direction == "ingress" {
				_, err = p.Clients.EC2.AuthorizeSecurityGroupIngress(ctx,
					&ec2.AuthorizeSecurityGroupIngressInput{
						GroupId:       aws.String(groupID),
						IpPermissions: perms,
					})
			} else {
				_, err = p.Clients.EC2.AuthorizeSecurityGroupEgress(ctx,
					&ec2.AuthorizeSecurityGroupEgressInput{
						GroupId:       aws.String(groupID),
						IpPermissions: perms,
					})
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to authorize %s rules on %s: %w", direction, groupID, err)
		}
	}

	if len(toRevoke) > 0 {
		perms := permissionsFromKeys(toRevoke, nil)
		err := retry.Do(ctx, func() error {
			var err error
			if direction == "ingress" {
				_, err = p.Clients.EC2.RevokeSecurityGroupIngress(ctx,
					&ec2.RevokeSecurityGroupIngressInput{
						GroupId:       aws.String(groupID),
						IpPermissions: perms,
					})
			} else {
				_, err = p.Clients.EC2.RevokeSecurityGroupEgress(ctx,
					&ec2.RevokeSecurityGroupEgressInput{
						GroupId:       aws.String(groupID),
						IpPermissions: perms,
					})
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to revoke %s rules on %s: %w", direction, groupID, err)
		}
	}
	return nil
}

func (p *AWSProvider) findSecurityGroup(
	ctx context.Context,
	spec models.ResourceSpec,
) (*ec2types.SecurityGroup, error) {
	filters := []ec2types.Filter{
		{Name: aws.String("group-name"), Values: []string{spec.Name}},
	}
	if spec.SecurityGroup != nil && spec.SecurityGroup.VpcID != "" {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("vpc-id"),
			Values: []string{spec.SecurityGroup.VpcID},
		})
	}

	var out *ec2.DescribeSecurityGroupsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			Filters: filters,
		})
		return err
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.SecurityGroups) == 0 {
		return nil, nil
	}
	return &out.SecurityGroups[0], nil
}

func explodePermissions(perms []ec2types.IpPermission) map[ruleKey]struct{} {
	set := make(map[ruleKey]struct{})
	for _, perm := range perms {
		for _, r := range perm.IpRanges {
			set[ruleKey{
				protocol: aws.ToString(perm.IpProtocol),
				fromPort: aws.ToInt32(perm.FromPort),
				toPort:   aws.ToInt32(perm.ToPort),
				cidr:     aws.ToString(r.CidrIp),
			}] = struct{}{}
		}
	}
	return set
}

func explodeSpecRules(rules []models.SecurityGroupRule) map[ruleKey]struct{} {
	set := make(map[ruleKey]struct{})
	for _, rule := range rules {
		for _, cidr := range rule.CidrBlocks {
			set[ruleKey{
				protocol: rule.Protocol,
				fromPort: rule.FromPort,
				toPort:   rule.ToPort,
				cidr:     cidr,
			}] = struct{}{}
		}
	}
	return set
}

func permissionsFromKeys(keys []ruleKey, rules []models.SecurityGroupRule) []ec2types.IpPermission {
	descriptions := make(map[ruleKey]string)
	for _, rule := range rules {
		for _, cidr := range rule.CidrBlocks {
			descriptions[ruleKey{
				protocol: rule.Protocol,
				fromPort: rule.FromPort,
				toPort:   rule.ToPort,
				cidr:     cidr,
			}] = rule.Description
		}
	}

	perms := make([]ec2types.IpPermission, 0, len(keys))
	for _, key := range keys {
		ipRange := ec2types.IpRange{CidrIp: aws.String(key.cidr)}
		if desc := descriptions[key]; desc != "" {
			ipRange.Description = aws.String(desc)
		}
		perm := ec2types.IpPermission{
			IpProtocol: aws.String(key.protocol),
			IpRanges:   []ec2types.IpRange{ipRange},
		}
		// Protocol -1 takes no port range.
		if key.protocol != "-1" {
			perm.FromPort = aws.Int32(key.fromPort)
			perm.ToPort = aws.Int32(key.toPort)
		}
		perms = append(perms, perm)
	}
	return perms
}

func sortRuleKeys(keys []ruleKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}

func recordRuleChanges(
	result *models.Result,
	direction string,
	toAuthorize []ruleKey,
	desired map[ruleKey]struct{},
	toRevoke []ruleKey,
	haveCurrent bool,
) {
	if !haveCurrent {
		// New group: every desired rule is an addition.
		keys := make([]ruleKey, 0, len(desired))
		for key := range desired {
			keys = append(keys, key)
		}
		sortRuleKeys(keys)
		for _, key := range keys {
			result.Record(direction, "", key.String())
		}
		return
	}
	for _, key := range toAuthorize {
		result.Record(direction, "", key.String())
	}
	for _, key := range toRevoke {
		result.Record(direction, key.String(), "")
	}
}
