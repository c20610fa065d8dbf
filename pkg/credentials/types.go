package credentials

// Record is the persisted credential file.
//
// Every field is optional on disk: keys missing from the JSON object decode
// to the empty string so older files keep loading as new fields are added.
type Record struct {
	Token        string `json:"github_token"`
	Username     string `json:"github_username"`
	OpenAIAPIKey string `json:"openai_api_key"`
}

// Update is a partial change to a Record. Nil fields are left untouched.
type Update struct {
	Token        *string
	Username     *string
	OpenAIAPIKey *string
}

// Apply copies the non-nil fields of u onto r.
func (u Update) Apply(r *Record) {
	if u.Token != nil {
		r.Token = *u.Token
	}
	if u.Username != nil {
		r.Username = *u.Username
	}
	if u.OpenAIAPIKey != nil {
		r.OpenAIAPIKey = *u.OpenAIAPIKey
	}
}

// String returns a pointer to s, for building Updates.
func String(s string) *string {
	return &s
}
