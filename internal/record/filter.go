package record

// Filter selects records from a relay query. Empty slices match everything
// for that dimension. Relays are not trusted to apply filters faithfully;
// Matches is re-applied client side.
type Filter struct {
	Kinds      []int    `json:"kinds,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	Recipients []string `json:"#p,omitempty"`
	Types      []string `json:"#t,omitempty"`
	Since      int64    `json:"since,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

func (f Filter) Matches(r *Record) bool {
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, r.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, r.Pubkey) {
		return false
	}
	if len(f.Recipients) > 0 && !containsString(f.Recipients, r.TagValue(TagRecipient)) {
		return false
	}
	if len(f.Types) > 0 && !containsString(f.Types, r.TagValue(TagType)) {
		return false
	}
	if f.Since > 0 && r.CreatedAt < f.Since {
		return false
	}
	return true
}

// SecretsFilter builds the filter that retrieves only this application's
// envelopes addressed to the given owner pubkey.
func SecretsFilter(ownerPubkeyHex string) Filter {
	return Filter{
		Kinds:      []int{KindEnvelope},
		Recipients: []string{ownerPubkeyHex},
		Types:      []string{TypeDiscriminator},
	}
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
