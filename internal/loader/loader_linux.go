//go:build linux

package loader

import (
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/rlimit"
	"github.com/sirupsen/logrus"
)

// Loader manages the lifecycle of uprobe attachments and perf readers
// for one plan.
type Loader struct {
	plan  *Plan
	coll  *ebpf.Collection
	log   *logrus.Logger
	links []link.Link
}

// New creates a Loader over a loaded eBPF collection. The collection
// must contain one program per distinct probe function name in the plan
// and one perf event array per buffer name; missing entries surface here
// rather than mid-attach.
func New(plan *Plan, coll *ebpf.Collection, log *logrus.Logger) (*Loader, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, spec := range plan.Attachments {
		if coll.Programs[spec.ProbeFnName] == nil {
			return nil, fmt.Errorf("collection has no program %q", spec.ProbeFnName)
		}
	}
	for _, name := range plan.Buffers {
		if coll.Maps[name] == nil {
			return nil, fmt.Errorf("collection has no perf buffer map %q", name)
		}
	}
	return &Loader{plan: plan, coll: coll, log: log}, nil
}

// closeErrorf closes all attached links and returns a formatted error.
// Cleanup errors are ignored since we're already in an error path.
func (l *Loader) closeErrorf(errstr string, e error) error {
	for i := len(l.links) - 1; i >= 0; i-- {
		_ = l.links[i].Close() //nolint:errcheck // Best-effort cleanup in error path
	}
	l.links = nil
	return fmt.Errorf("%s: %w", errstr, e)
}

// Attach binds every planned uprobe. Return-site attachments use plain
// uprobes at the resolved RET addresses, never uretprobes: the traced
// runtime may move goroutine stacks and invalidate a return trampoline.
func (l *Loader) Attach() error {
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("removing memlock limit: %w", err)
	}

	ex, err := link.OpenExecutable(l.plan.BinaryPath)
	if err != nil {
		return fmt.Errorf("opening executable %s: %w", l.plan.BinaryPath, err)
	}

	for _, spec := range l.plan.Attachments {
		prog := l.coll.Programs[spec.ProbeFnName]
		lnk, err := ex.Uprobe(spec.Symbol, prog, &link.UprobeOptions{
			Address: spec.Address,
		})
		if err != nil {
			return l.closeErrorf(fmt.Sprintf("attaching %s at %#x", spec.ProbeFnName, spec.Address), err)
		}
		l.links = append(l.links, lnk)

		l.log.WithFields(logrus.Fields{
			"symbol":   spec.Symbol,
			"kind":     spec.AttachKind,
			"address":  fmt.Sprintf("%#x", spec.Address),
			"probe_fn": spec.ProbeFnName,
		}).Debug("attached uprobe")
	}

	l.log.WithField("count", len(l.links)).Info("all uprobes attached")
	return nil
}

// OpenBuffers opens one perf reader per planned buffer, keyed by buffer
// name. Callers own the readers and must close them.
func (l *Loader) OpenBuffers() (map[string]*perf.Reader, error) {
	readers := make(map[string]*perf.Reader, len(l.plan.Buffers))
	for _, name := range l.plan.Buffers {
		rd, err := perf.NewReader(l.coll.Maps[name], os.Getpagesize())
		if err != nil {
			for _, open := range readers {
				_ = open.Close() //nolint:errcheck // Best-effort cleanup in error path
			}
			return nil, fmt.Errorf("opening perf buffer %q: %w", name, err)
		}
		readers[name] = rd
	}
	return readers, nil
}

// Close detaches every uprobe in reverse attach order.
func (l *Loader) Close() error {
	var firstErr error
	for i := len(l.links) - 1; i >= 0; i-- {
		if err := l.links[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.links = nil
	return firstErr
}
