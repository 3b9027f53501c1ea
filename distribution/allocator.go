// Package distribution splits a selection of packages across newly
// configured pulls. The fill is greedy and order preserving: pulls are
// filled in the order they are configured and packages are taken in the
// order they were selected. No sorting or balancing is attempted.
package distribution

import (
	"sort"

	"parcelhub/models"
)

// PullConfig is one pull to be created: its size class and how many
// packages it may hold.
type PullConfig struct {
	Size        models.PullSize `json:"size"`
	MaxPackages int             `json:"max_packages"`
}

// Result maps a config index to the package ids it received. Configs that
// received nothing have no entry.
type Result struct {
	Assignments map[int][]string `json:"assignments"`
	Unassigned  []string         `json:"unassigned"`
}

// PullPlan is one entry of Result.Plans.
type PullPlan struct {
	Index      int             `json:"index"`
	Size       models.PullSize `json:"size"`
	PackageIDs []string        `json:"package_ids"`
}

// Distribute assigns each package id to at most one config. Configs with a
// capacity below one are skipped. Repeated ids after the first occurrence
// are dropped. Whatever does not fit is returned in Unassigned, in selection
// order; overflow is not an error.
func Distribute(packageIDs []string, configs []PullConfig) Result {
	queue := dedupe(packageIDs)
	res := Result{Assignments: make(map[int][]string)}

	next := 0
	for i, cfg := range configs {
		if next >= len(queue) {
			break
		}
		if cfg.MaxPackages < 1 {
			continue
		}
		end := len(queue)
		if cfg.MaxPackages < end-next {
			end = next + cfg.MaxPackages
		}
		res.Assignments[i] = append([]string(nil), queue[next:end]...)
		next = end
	}

	res.Unassigned = append([]string{}, queue[next:]...)
	return res
}

// Assigned returns how many packages were placed in a pull.
func (r Result) Assigned() int {
	n := 0
	for _, ids := range r.Assignments {
		n += len(ids)
	}
	return n
}

// Plans lists the assignments in config order, paired with the size of
// the config that produced them.
func (r Result) Plans(configs []PullConfig) []PullPlan {
	idx := make([]int, 0, len(r.Assignments))
	for i := range r.Assignments {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	plans := make([]PullPlan, 0, len(idx))
	for _, i := range idx {
		var size models.PullSize
		if i < len(configs) {
			size = configs[i].Size
		}
		plans = append(plans, PullPlan{Index: i, Size: size, PackageIDs: r.Assignments[i]})
	}
	return plans
}

// Drafts converts the plans into pull drafts ready for the entity store.
func (r Result) Drafts(configs []PullConfig) []models.PullDraft {
	plans := r.Plans(configs)
	drafts := make([]models.PullDraft, 0, len(plans))
	for _, p := range plans {
		drafts = append(drafts, models.PullDraft{Size: p.Size, PackageIDs: p.PackageIDs})
	}
	return drafts
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
