package evaluator

import (
	"sync"

	"gopkl/internal/object"
)

// shapeKey identifies one (literal site, parent shape) pair. Legality of a
// fragment against a parent depends only on the member kinds written at the
// site and on the parent's class, so the verdict can be cached under this
// key. Length-dependent listing checks are excluded from the cache and run
// on every amendment.
type shapeKey struct {
	site  uint64
	kind  object.ClassKind
	class *object.Class
}

type siteVerdict struct {
	once sync.Once
	err  error
}

// siteCache memoizes shape-legality verdicts. Concurrent amendments of the
// same site race only on who runs the check; every caller observes the same
// verdict.
type siteCache struct {
	verdicts sync.Map
}

func newSiteCache() *siteCache {
	return &siteCache{}
}

// validate runs check at most once per key and returns the cached verdict
// thereafter.
func (c *siteCache) validate(key shapeKey, check func() error) error {
	v, _ := c.verdicts.LoadOrStore(key, &siteVerdict{})
	verdict := v.(*siteVerdict)
	verdict.once.Do(func() {
		verdict.err = check()
	})
	return verdict.err
}
