package waiter

import "time"

// Polling budgets per resource transition. Delay × MaxAttempts is the
// effective timeout.
var (
	VPCAvailable = Config{
		Name:        "vpc-available",
		Delay:       5 * time.Second,
		MaxAttempts: 60,
	}

	InstanceRunning = Config{
		Name:        "instance-running",
		Delay:       15 * time.Second,
		MaxAttempts: 40,
	}

	InstanceTerminated = Config{
		Name:        "instance-terminated",
		Delay:       15 * time.Second,
		MaxAttempts: 40,
	}

	ImageAvailable = Config{
		Name:        "image-available",
		Delay:       15 * time.Second,
		MaxAttempts: 80,
	}

	BucketExists = Config{
		Name:        "bucket-exists",
		Delay:       5 * time.Second,
		MaxAttempts: 24,
	}

	BucketNotExists = Config{
		Name:        "bucket-not-exists",
		Delay:       5 * time.Second,
		MaxAttempts: 24,
	}

	StackOperationComplete = Config{
		Name:        "stack-operation-complete",
		Delay:       15 * time.Second,
		MaxAttempts: 120,
	}

	LoadBalancerActive = Config{
		Name:        "load-balancer-active",
		Delay:       15 * time.Second,
		MaxAttempts: 40,
	}

	GroupInService = Config{
		Name:        "group-in-service",
		Delay:       15 * time.Second,
		MaxAttempts: 40,
	}

	GroupDeleted = Config{
		Name:        "group-deleted",
		Delay:       15 * time.Second,
		MaxAttempts: 80,
	}

	CertificateIssued = Config{
		Name:        "certificate-issued",
		Delay:       10 * time.Second,
		MaxAttempts: 30,
	}
)
