// Package obslog centralizes this host's logging (the logging half of C9;
// IOPub status broadcasts live in internal/kernel's publishStatus), built on
// k8s.io/klog/v2 the way the donor's
// kernel/pipepoll.go already does (klog.Infof/Errorf/V), rather than
// introducing a second logging library.
package obslog

import (
	"fmt"

	"k8s.io/klog/v2"
)

// KernelLogger prefixes every line with the owning kernel's id, so a
// multi-kernel host's log stream stays attributable per fleet member.
type KernelLogger struct {
	KernelID string
}

func ForKernel(id string) *KernelLogger {
	return &KernelLogger{KernelID: id}
}

func (l *KernelLogger) Infof(format string, args ...interface{}) {
	klog.Infof("[kernel %s] "+format, append([]interface{}{l.KernelID}, args...)...)
}

func (l *KernelLogger) Errorf(format string, args ...interface{}) {
	klog.Errorf("[kernel %s] "+format, append([]interface{}{l.KernelID}, args...)...)
}

func (l *KernelLogger) V(level klog.Level) klog.Verbose {
	return klog.V(level)
}

func (l *KernelLogger) String() string {
	return fmt.Sprintf("kernel-logger(%s)", l.KernelID)
}

// Infof/Errorf/Warningf log at the process level, for fleet- and
// REST-surface events not attributable to one kernel.
func Infof(format string, args ...interface{})    { klog.Infof(format, args...) }
func Errorf(format string, args ...interface{})   { klog.Errorf(format, args...) }
func Warningf(format string, args ...interface{}) { klog.Warningf(format, args...) }
