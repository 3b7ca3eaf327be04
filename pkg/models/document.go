// Package models defines the desired-state document amarra converges
// against, and the result types reconcilers report.
package models

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// ResourceType names a kind of AWS resource amarra can manage.
type ResourceType string

const (
	TypeVPC              ResourceType = "vpc"
	TypeDHCPOptions      ResourceType = "dhcp_options"
	TypeSecurityGroup    ResourceType = "security_group"
	TypeInstance         ResourceType = "instance"
	TypeImage            ResourceType = "image"
	TypeS3Bucket         ResourceType = "s3_bucket"
	TypeCloudFormation   ResourceType = "cloudformation_stack"
	TypeLoadBalancer     ResourceType = "load_balancer"
	TypeAutoScalingGroup ResourceType = "autoscaling_group"
	TypeCertificate      ResourceType = "certificate"
)

// State is the desired lifecycle state of a resource.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Document is a parsed desired-state file.
type Document struct {
	Name      string         `json:"name"`
	Region    string         `json:"region,omitempty"`
	Resources []ResourceSpec `json:"resources"`
}

// ResourceSpec describes one resource. Exactly one of the per-type spec
// blocks must be set, matching Type.
type ResourceSpec struct {
	Type   ResourceType `json:"type"`
	Name   string       `json:"name"`
	State  State        `json:"state,omitempty"`
	Region string       `json:"region,omitempty"`

	Tags      map[string]string `json:"tags,omitempty"`
	PurgeTags bool              `json:"purge_tags,omitempty"`

	VPC           *VPCSpec           `json:"vpc,omitempty"`
	DHCPOptions   *DHCPOptionsSpec   `json:"dhcp_options,omitempty"`
	SecurityGroup *SecurityGroupSpec `json:"security_group,omitempty"`
	Instance      *InstanceSpec      `json:"instance,omitempty"`
	Image         *ImageSpec         `json:"image,omitempty"`
	Bucket        *BucketSpec        `json:"bucket,omitempty"`
	Stack         *StackSpec         `json:"stack,omitempty"`
	LoadBalancer  *LoadBalancerSpec  `json:"load_balancer,omitempty"`
	Group         *AutoScalingSpec   `json:"group,omitempty"`
	Certificate   *CertificateSpec   `json:"certificate,omitempty"`
}

// LoadDocument reads and validates a desired-state file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return ParseDocument(data)
}

// ParseDocument parses and validates a desired-state document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document for structural problems before any AWS
// call is made.
func (d *Document) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("document name is required")
	}
	seen := make(map[string]struct{}, len(d.Resources))
	for i := range d.Resources {
		r := &d.Resources[i]
		if r.Name == "" {
			return fmt.Errorf("resource %d: name is required", i)
		}
		key := string(r.Type) + "/" + r.Name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate resource %s", key)
		}
		seen[key] = struct{}{}

		if r.State == "" {
			r.State = StatePresent
		}
		if r.State != StatePresent && r.State != StateAbsent {
			return fmt.Errorf("resource %s: invalid state %q", r.Name, r.State)
		}
		if err := r.validateSpecBlock(); err != nil {
			return fmt.Errorf("resource %s: %w", r.Name, err)
		}
	}
	return nil
}

func (r *ResourceSpec) validateSpecBlock() error {
	blocks := map[ResourceType]bool{
		TypeVPC:              r.VPC != nil,
		TypeDHCPOptions:      r.DHCPOptions != nil,
		TypeSecurityGroup:    r.SecurityGroup != nil,
		TypeInstance:         r.Instance != nil,
		TypeImage:            r.Image != nil,
		TypeS3Bucket:         r.Bucket != nil,
		TypeCloudFormation:   r.Stack != nil,
		TypeLoadBalancer:     r.LoadBalancer != nil,
		TypeAutoScalingGroup: r.Group != nil,
		TypeCertificate:      r.Certificate != nil,
	}

	present, known := blocks[r.Type]
	if !known {
		return fmt.Errorf("unknown resource type %q", r.Type)
	}
	// Absent resources are identified by name alone; the spec block is
	// only mandatory for present state.
	if r.State == StatePresent && !present {
		return fmt.Errorf("missing %s spec block", r.Type)
	}
	for t, set := range blocks {
		if set && t != r.Type {
			return fmt.Errorf("spec block %s does not match resource type %s", t, r.Type)
		}
	}
	return nil
}

// ResourcesByRegion groups resources by their effective region,
// preserving document order within each group.
func (d *Document) ResourcesByRegion() map[string][]ResourceSpec {
	groups := make(map[string][]ResourceSpec)
	for _, r := range d.Resources {
		region := r.Region
		if region == "" {
			region = d.Region
		}
		groups[region] = append(groups[region], r)
	}
	return groups
}
