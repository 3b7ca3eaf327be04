package awsutil

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// TagsToMap converts an EC2 tag list to a plain map.
func TagsToMap(tags []ec2types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key == nil {
			continue
		}
		result[*tag.Key] = aws.ToString(tag.Value)
	}
	return result
}

// MapToTags converts a map to an EC2 tag list, sorted by key so request
// bodies are stable.
func MapToTags(tags map[string]string) []ec2types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]ec2types.Tag, 0, len(tags))
	for _, k := range keys {
		result = append(result, ec2types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return result
}

// CompareTags computes the convergence delta between the tags on a live
// resource and the desired set. toSet holds keys to create or update;
// toRemove holds keys present on the resource but absent from desired,
// and is only populated when purge is true.
func CompareTags(
	current map[string]string,
	desired map[string]string,
	purge bool,
) (toSet map[string]string, toRemove []string) {
	toSet = make(map[string]string)
	for k, v := range desired {
		if cur, ok := current[k]; !ok || cur != v {
			toSet[k] = v
		}
	}
	if purge {
		for k := range current {
			if _, ok := desired[k]; !ok {
				toRemove = append(toRemove, k)
			}
		}
		sort.Strings(toRemove)
	}
	return toSet, toRemove
}

// TagSpecification builds an EC2 tag specification for create calls so
// resources come up already tagged.
func TagSpecification(
	resourceType ec2types.ResourceType,
	tags map[string]string,
) []ec2types.TagSpecification {
	if len(tags) == 0 {
		return nil
	}
	return []ec2types.TagSpecification{
		{
			ResourceType: resourceType,
			Tags:         MapToTags(tags),
		},
	}
}
