package driftdetector

import (
	"fmt"
	"strings"

	"github.com/Nithish-ponnusamy/new-k8s/types"
)

// Static syscall classification. The tables are deliberately small:
// anything not listed is benign and produces no drift.

var privilegeSyscalls = map[string]bool{
	"setuid":    true,
	"setgid":    true,
	"setreuid":  true,
	"setregid":  true,
	"setresuid": true,
	"setresgid": true,
	"capset":    true,
}

var suspiciousSyscalls = map[string]bool{
	"ptrace":        true,
	"mount":         true,
	"umount2":       true,
	"init_module":   true,
	"finit_module":  true,
	"delete_module": true,
	"bpf":           true,
	"kexec_load":    true,
}

var sensitivePathPrefixes = []string{
	"/etc/shadow",
	"/etc/passwd",
	"/etc/sudoers",
	"/root/.ssh",
	"/etc/ssl/private",
}

var configPathPrefixes = []string{
	"/etc/kubernetes",
	"/var/lib/kubelet",
	"/etc/cni",
	"/root/.kube",
}

func hasPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func classifySyscall(event types.ObservedEvent) *types.DriftEvent {
	syscall := strings.ToLower(event.Syscall)

	if privilegeSyscalls[syscall] {
		return &types.DriftEvent{
			Timestamp: eventTime(event),
			EventType: types.DriftPrivilegeEscalation,
			SourcePod: event.SourcePod,
			Severity:  types.SeverityCritical,
			Action:    types.ActionFlagged,
			Details:   fmt.Sprintf("privilege changing syscall %s observed in %s", syscall, event.SourcePod),
		}
	}

	if suspiciousSyscalls[syscall] {
		return &types.DriftEvent{
			Timestamp: eventTime(event),
			EventType: types.DriftSuspiciousSyscall,
			SourcePod: event.SourcePod,
			Severity:  types.SeverityHigh,
			Action:    types.ActionFlagged,
			Details:   fmt.Sprintf("suspicious syscall %s observed in %s", syscall, event.SourcePod),
		}
	}

	if event.Path != "" {
		if hasPrefix(event.Path, configPathPrefixes) {
			return &types.DriftEvent{
				Timestamp: eventTime(event),
				EventType: types.DriftConfigChange,
				SourcePod: event.SourcePod,
				Severity:  types.SeverityHigh,
				Action:    types.ActionFlagged,
				Details:   fmt.Sprintf("cluster configuration path %s touched by %s", event.Path, event.SourcePod),
			}
		}

		if hasPrefix(event.Path, sensitivePathPrefixes) {
			return &types.DriftEvent{
				Timestamp: eventTime(event),
				EventType: types.DriftFileAccess,
				SourcePod: event.SourcePod,
				Severity:  types.SeverityMedium,
				Action:    types.ActionFlagged,
				Details:   fmt.Sprintf("sensitive path %s accessed by %s", event.Path, event.SourcePod),
			}
		}
	}

	return nil
}
