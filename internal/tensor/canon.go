package tensor

// Canon allowlist. Closed-world labelling: tags outside this set are
// silently dropped at construction time, so the system never invents
// category names at runtime. Expand only via a canon-pack update.
const (
	TagBalance   = "AXIOM_1_BALANCE"
	TagExtremes  = "AXIOM_2_EXTREMES"
	TagForce     = "AXIOM_3_FORCE"
	TagFlow      = "AXIOM_4_FLOW"
	TagAwareness = "AXIOM_5_AWARENESS"
	TagChoice    = "AXIOM_6_CHOICE"
)

var canonTags = map[string]struct{}{
	TagBalance:   {},
	TagExtremes:  {},
	TagForce:     {},
	TagFlow:      {},
	TagAwareness: {},
	TagChoice:    {},
}

// IsCanonTag reports whether tag is in the fixed allowlist.
func IsCanonTag(tag string) bool {
	_, ok := canonTags[tag]
	return ok
}

// FilterCanon de-duplicates tags and drops anything outside the canon
// allowlist, preserving first-seen order.
func FilterCanon(tags []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if !IsCanonTag(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
