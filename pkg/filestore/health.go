package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/blockframe/blockframe/pkg/erasure"
	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/metrics"
)

const fileMode = 0o644

// Status is a protection unit's (and, aggregated, a file's) health
// classification.
type Status int

const (
	Healthy Status = iota
	Degraded
	Recoverable
	Unrecoverable
)

// String renders a Status for reports and log lines.
func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Recoverable:
		return "recoverable"
	case Unrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// worse reports whether candidate outranks current in severity.
func worse(current, candidate Status) bool {
	return candidate > current
}

// UnitReport is one protection unit's classification.
type UnitReport struct {
	Index  int
	Status Status
}

// FileReport is a whole file's classification: the worst unit status,
// plus the detail behind it.
type FileReport struct {
	Name   string
	Status Status
	Units  []UnitReport
}

// BatchHealthReport aggregates per-file reports and counts per class.
type BatchHealthReport struct {
	Files  []FileReport
	Counts map[Status]int
}

// BatchHealthCheck classifies every file in the archive concurrently,
// fanning file-level checks out across an errgroup; a failure loading
// one file's manifest does not abort the others.
func BatchHealthCheck(ctx context.Context, archiveDir string) (BatchHealthReport, error) {
	files, err := GetAll(archiveDir)
	if err != nil {
		return BatchHealthReport{}, err
	}

	reports := make([]FileReport, len(files))

	g, _ := errgroup.WithContext(ctx)

	for i, f := range files {
		i, f := i, f

		g.Go(func() error {
			reports[i] = classifyFile(f)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchHealthReport{}, err
	}

	counts := make(map[Status]int, 4)
	for _, r := range reports {
		counts[r.Status]++
	}

	return BatchHealthReport{Files: reports, Counts: counts}, nil
}

func classifyFile(f File) FileReport {
	units := unitsForFile(f)

	report := FileReport{Name: f.Manifest.Name, Status: Healthy, Units: make([]UnitReport, len(units))}

	for i, u := range units {
		status, _, _, _ := inspectUnit(u)

		report.Units[i] = UnitReport{Index: u.index, Status: status}

		if worse(report.Status, status) {
			report.Status = status
		}
	}

	return report
}

// inspectUnit reads every shard of u from disk, verifies what it can
// against the manifest, and classifies the unit. The returned byte
// slices have nil entries for holes (missing or hash-mismatched shards)
// and are reused by Repair to avoid a second read pass.
func inspectUnit(u unit) (Status, [][]byte, [][]byte, error) {
	dataShards := make([][]byte, len(u.dataPaths))
	validData := 0

	for i, p := range u.dataPaths {
		data, ok := readShard(p, u.dataHashes[i])
		if ok {
			dataShards[i] = data
			validData++
		}
	}

	parityShards := make([][]byte, len(u.parityPaths))
	validParity := 0

	for i, p := range u.parityPaths {
		expected := ""
		if u.parityHashes != nil {
			expected = u.parityHashes[i]
		}

		data, ok := readShard(p, expected)
		if ok {
			parityShards[i] = data
			validParity++
		}
	}

	dataShardCount := len(u.dataPaths)

	if validData == dataShardCount {
		if validParity < len(u.parityPaths) {
			return Degraded, dataShards, parityShards, nil
		}

		if u.parityHashes != nil {
			return Healthy, dataShards, parityShards, nil
		}

		ok, err := verifyParityConsistency(dataShards, parityShards, dataShardCount)
		if err != nil {
			return Degraded, dataShards, parityShards, nil //nolint:nilerr
		}

		if ok {
			return Healthy, dataShards, parityShards, nil
		}

		return Degraded, dataShards, parityShards, nil
	}

	if validData+validParity >= dataShardCount {
		return Recoverable, dataShards, parityShards, nil
	}

	return Unrecoverable, dataShards, parityShards, nil
}

// verifyParityConsistency is used for Tier 1/2 units, whose manifest
// carries no reference hash for parity shards: consistency between data
// and parity is established by running them back through the decoder
// instead.
func verifyParityConsistency(dataShards, parityShards [][]byte, dataShardCount int) (bool, error) {
	shardLen := 0
	for _, p := range parityShards {
		if len(p) > shardLen {
			shardLen = len(p)
		}
	}

	if shardLen == 0 {
		return false, errs.Wrap(errs.IntegrityError, "no parity shard available to determine shard length", nil)
	}

	full := make([][]byte, dataShardCount+len(parityShards))

	for i, d := range dataShards {
		full[i] = padTo(d, shardLen)
	}

	copy(full[dataShardCount:], parityShards)

	return erasure.Verify(full, dataShardCount, erasure.ParityShards)
}

func padTo(data []byte, length int) []byte {
	if len(data) >= length {
		return data
	}

	padded := make([]byte, length)
	copy(padded, data)

	return padded
}

func readShard(path, expectedHash string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	if expectedHash == "" {
		return data, true
	}

	return data, hashx.HashBytes(data) == expectedHash
}

// Repair attempts to reconstruct every non-healthy unit of name and
// rewrite only the shard files that were missing or hash-mismatched;
// the manifest is never modified. It returns the post-repair
// classification.
func Repair(ctx context.Context, archiveDir, name string) (FileReport, error) {
	f, err := Find(archiveDir, name)
	if err != nil {
		return FileReport{}, err
	}

	units := unitsForFile(f)
	report := FileReport{Name: f.Manifest.Name, Status: Healthy, Units: make([]UnitReport, len(units))}

	for i, u := range units {
		status, dataShards, parityShards, _ := inspectUnit(u)

		if status == Healthy {
			report.Units[i] = UnitReport{Index: u.index, Status: Healthy}

			continue
		}

		if status == Unrecoverable {
			report.Units[i] = UnitReport{Index: u.index, Status: Unrecoverable}
			report.Status = Unrecoverable

			continue
		}

		metrics.RecordReconstruction(ctx, unitTierLabel(u))

		repaired, err := repairUnit(u, dataShards, parityShards)
		if err != nil {
			report.Units[i] = UnitReport{Index: u.index, Status: Unrecoverable}
			report.Status = Unrecoverable

			continue
		}

		report.Units[i] = UnitReport{Index: u.index, Status: repaired}

		if worse(report.Status, repaired) {
			report.Status = repaired
		}
	}

	return report, nil
}

// repairUnit reconstructs missing/corrupt shards in place using the
// surviving shards, re-verifies the reconstruction, and writes back only
// the shards that were holes.
func repairUnit(u unit, dataShards, parityShards [][]byte) (Status, error) {
	shardLen := 0

	for _, s := range append(append([][]byte(nil), dataShards...), parityShards...) {
		if len(s) > shardLen {
			shardLen = len(s)
		}
	}

	if shardLen == 0 {
		return Unrecoverable, errs.Wrap(errs.RecoveryFailed, fmt.Sprintf("unit %d has no surviving shards", u.index), nil)
	}

	full := make([][]byte, len(dataShards)+len(parityShards))

	for i, d := range dataShards {
		if d != nil {
			full[i] = padTo(d, shardLen)
		}
	}

	for i, p := range parityShards {
		full[len(dataShards)+i] = p
	}

	if err := erasure.Reconstruct(full, len(dataShards), erasure.ParityShards); err != nil {
		return Unrecoverable, err
	}

	for i := range dataShards {
		recovered := full[i]
		if i < len(u.dataLengths) && u.dataLengths[i] <= len(recovered) {
			recovered = recovered[:u.dataLengths[i]]
		}

		if u.dataHashes[i] != "" && hashx.HashBytes(recovered) != u.dataHashes[i] {
			return Unrecoverable, errs.Wrap(errs.IntegrityError, fmt.Sprintf("unit %d shard %d failed re-verification after recovery", u.index, i), nil)
		}

		if dataShards[i] == nil {
			if err := writeFile(u.dataPaths[i], recovered); err != nil {
				return Unrecoverable, err
			}
		}
	}

	for i := range parityShards {
		if parityShards[i] == nil {
			if err := writeFile(u.parityPaths[i], full[len(dataShards)+i]); err != nil {
				return Unrecoverable, err
			}
		}
	}

	status, _, _, err := inspectUnit(u)
	if err != nil {
		return Unrecoverable, err
	}

	return status, nil
}

func unitTierLabel(u unit) string {
	switch u.tier {
	case manifest.TierTiny:
		return "tier1"
	case manifest.TierSegmented:
		return "tier2"
	case manifest.TierBlocked:
		return "tier3"
	default:
		return "unknown"
	}
}

// writeFile atomically replaces path's contents: a repair only ever
// touches shards that were holes, writing a sibling temp file in the
// same directory and renaming it into place so a crash mid-repair never
// leaves a half-written shard behind.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*")
	if err != nil {
		return errs.Wrap(errs.PermanentIO, "creating temporary file", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("writing %q", path), err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return errs.Wrap(errs.PermanentIO, "closing temporary file", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("renaming into place %q", path), err)
	}

	return os.Chmod(path, fileMode)
}

