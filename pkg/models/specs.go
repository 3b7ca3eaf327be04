package models

// VPCSpec describes an EC2 VPC.
type VPCSpec struct {
	CidrBlock          string `json:"cidr_block"`
	EnableDnsSupport   *bool  `json:"enable_dns_support,omitempty"`
	EnableDnsHostnames *bool  `json:"enable_dns_hostnames,omitempty"`
	InstanceTenancy    string `json:"instance_tenancy,omitempty"`
}

// DHCPOptionsSpec describes a DHCP option set. Omitted options are
// inherited from the live set when one exists, never cleared.
type DHCPOptionsSpec struct {
	DomainName         string   `json:"domain_name,omitempty"`
	DomainNameServers  []string `json:"domain_name_servers,omitempty"`
	NtpServers         []string `json:"ntp_servers,omitempty"`
	NetbiosNameServers []string `json:"netbios_name_servers,omitempty"`
	NetbiosNodeType    string   `json:"netbios_node_type,omitempty"`

	// VpcID associates the option set after creation.
	VpcID string `json:"vpc_id,omitempty"`
}

// SecurityGroupRule is one ingress or egress permission.
type SecurityGroupRule struct {
	Protocol    string   `json:"protocol"`
	FromPort    int32    `json:"from_port,omitempty"`
	ToPort      int32    `json:"to_port,omitempty"`
	CidrBlocks  []string `json:"cidr_blocks,omitempty"`
	Description string   `json:"description,omitempty"`
}

// SecurityGroupSpec describes a security group and its rule set.
type SecurityGroupSpec struct {
	Description string              `json:"description"`
	VpcID       string              `json:"vpc_id"`
	Ingress     []SecurityGroupRule `json:"ingress,omitempty"`
	Egress      []SecurityGroupRule `json:"egress,omitempty"`
	PurgeRules  bool                `json:"purge_rules,omitempty"`
}

// ImageLookup resolves an AMI at reconcile time instead of pinning an ID.
type ImageLookup struct {
	// SSMParameter is a public parameter path, e.g.
	// /aws/service/canonical/ubuntu/server/22.04/stable/current/amd64/hvm/ebs-gp2/ami-id
	SSMParameter string `json:"ssm_parameter,omitempty"`
	// NameFilter matches AMI names (most recent wins); Owner narrows the
	// search, defaulting to Canonical's account.
	NameFilter string `json:"name_filter,omitempty"`
	Owner      string `json:"owner,omitempty"`
}

// InstanceSpec describes a single EC2 instance, identified by its Name
// tag.
type InstanceSpec struct {
	ImageID          string       `json:"image_id,omitempty"`
	ImageLookup      *ImageLookup `json:"image_lookup,omitempty"`
	InstanceType     string       `json:"instance_type"`
	SubnetID         string       `json:"subnet_id,omitempty"`
	SecurityGroupIDs []string     `json:"security_group_ids,omitempty"`
	KeyName          string       `json:"key_name,omitempty"`
	UserData         string       `json:"user_data,omitempty"`
	Wait             bool         `json:"wait,omitempty"`
}

// ImageSpec describes an AMI created from an instance or registered
// from an EBS snapshot.
type ImageSpec struct {
	InstanceID  string `json:"instance_id,omitempty"`
	Description string `json:"description,omitempty"`
	NoReboot    bool   `json:"no_reboot,omitempty"`
	Wait        bool   `json:"wait,omitempty"`

	// SnapshotID registers the image from a snapshot instead of an
	// instance. RootDeviceName defaults to /dev/sda1 and Architecture
	// to x86_64.
	SnapshotID     string `json:"snapshot_id,omitempty"`
	RootDeviceName string `json:"root_device_name,omitempty"`
	Architecture   string `json:"architecture,omitempty"`

	// LaunchPermissions lists account IDs allowed to launch the image.
	LaunchPermissions []string `json:"launch_permissions,omitempty"`
}

// PublicAccessBlockSpec mirrors the S3 public access block settings.
type PublicAccessBlockSpec struct {
	BlockPublicAcls       bool `json:"block_public_acls"`
	IgnorePublicAcls      bool `json:"ignore_public_acls"`
	BlockPublicPolicy     bool `json:"block_public_policy"`
	RestrictPublicBuckets bool `json:"restrict_public_buckets"`
}

// BucketSpec describes an S3 bucket and its attached configuration.
// Nil pointer fields are unmanaged: the live setting is left alone. An
// explicit empty policy deletes the bucket policy.
type BucketSpec struct {
	Versioning        *bool                  `json:"versioning,omitempty"`
	Policy            *string                `json:"policy,omitempty"`
	Encryption        string                 `json:"encryption,omitempty"` // AES256 or aws:kms
	KMSKeyID          string                 `json:"kms_key_id,omitempty"`
	PublicAccessBlock *PublicAccessBlockSpec `json:"public_access_block,omitempty"`

	// Force empties the bucket before deletion.
	Force bool `json:"force,omitempty"`
}

// StackSpec describes a CloudFormation stack.
type StackSpec struct {
	TemplateBody    string            `json:"template_body,omitempty"`
	TemplateURL     string            `json:"template_url,omitempty"`
	Parameters      map[string]string `json:"parameters,omitempty"`
	Capabilities    []string          `json:"capabilities,omitempty"`
	DisableRollback bool              `json:"disable_rollback,omitempty"`
}

// ListenerSpec is one load balancer listener, identified by port.
type ListenerSpec struct {
	Protocol       string `json:"protocol"`
	Port           int32  `json:"port"`
	TargetGroupARN string `json:"target_group_arn"`
	SSLPolicy      string `json:"ssl_policy,omitempty"`
	CertificateARN string `json:"certificate_arn,omitempty"`
}

// LoadBalancerSpec describes an ALB or NLB.
type LoadBalancerSpec struct {
	LBType         string            `json:"lb_type,omitempty"` // application (default) or network
	Scheme         string            `json:"scheme,omitempty"`
	Subnets        []string          `json:"subnets"`
	SecurityGroups []string          `json:"security_groups,omitempty"`
	IPAddressType  string            `json:"ip_address_type,omitempty"`
	Listeners      []ListenerSpec    `json:"listeners,omitempty"`
	PurgeListeners bool              `json:"purge_listeners,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	Wait           bool              `json:"wait,omitempty"`
}

// LaunchTemplateRef points an ASG at a launch template.
type LaunchTemplateRef struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// AutoScalingSpec describes an Auto Scaling group.
type AutoScalingSpec struct {
	MinSize          int32             `json:"min_size"`
	MaxSize          int32             `json:"max_size"`
	DesiredCapacity  *int32            `json:"desired_capacity,omitempty"`
	LaunchTemplate   LaunchTemplateRef `json:"launch_template"`
	Subnets          []string          `json:"subnets,omitempty"`
	HealthCheckType  string            `json:"health_check_type,omitempty"`
	WaitForInstances bool              `json:"wait_for_instances,omitempty"`

	// Force deletes the group even with instances still in it.
	Force bool `json:"force,omitempty"`
}

// CertificateSpec describes an ACM certificate. Either an import bundle
// or a DNS-validated request.
type CertificateSpec struct {
	DomainName string `json:"domain_name"`

	// CertificateARN targets an existing certificate directly instead
	// of looking it up by domain name. Its region must match the
	// resource's region.
	CertificateARN string `json:"certificate_arn,omitempty"`

	// Import bundle (PEM).
	Certificate      string `json:"certificate,omitempty"`
	PrivateKey       string `json:"private_key,omitempty"`
	CertificateChain string `json:"certificate_chain,omitempty"`

	// ValidationMethod requests a new certificate (DNS or EMAIL) when no
	// import bundle is given.
	ValidationMethod string `json:"validation_method,omitempty"`

	// Wait blocks until a requested certificate is issued. Validation
	// records must already be in place for this to ever succeed.
	Wait bool `json:"wait,omitempty"`
}
