package handler

// recognizeRequest establishes personhood. With an ID and a key it claims a
// reserved ID; with an ID alone it resumes a suspended person; with a key
// alone it reserves a fresh ID and recognizes it in one call.
type recognizeRequest struct {
	ID  *uint64 `json:"id,omitempty"`
	Key *string `json:"key,omitempty"`
}

type forceRecognizeRequest struct {
	Keys []string `json:"keys"`
}

type buildRingRequest struct {
	Limit uint32 `json:"limit,omitempty"`
}

type mergeRingsRequest struct {
	Base  uint32 `json:"base"`
	Donor uint32 `json:"donor"`
}

type suspendRequest struct {
	Token string   `json:"token"`
	IDs   []uint64 `json:"ids"`
}

type closeSessionRequest struct {
	Token string `json:"token"`
}

type migrateKeyRequest struct {
	NewKey string `json:"new_key"`
}

type accountRequest struct {
	Account string `json:"account"`
}

type onboardingSizeRequest struct {
	Size uint32 `json:"size"`
}
