// auth.go defines the credentials sent with API calls.

package api

// Auth holds the credentials used to authenticate against the Gatey API.
//
// An access token identifies a user and is used for user-authorized calls.
// Event capture is project-scoped and needs a project id plus one of the
// project secrets.
type Auth struct {
	// AccessToken is the user access token (optional).
	AccessToken string

	// ProjectID identifies the project events are captured for.
	ProjectID string

	// ServerSecret is the project secret for server-side SDKs.
	ServerSecret string

	// ClientSecret is the project secret for client-side SDKs.
	// It is only sent when no ServerSecret is configured.
	ClientSecret string
}

// HasProjectAuth reports whether the project id and at least one secret are set.
func (a *Auth) HasProjectAuth() bool {
	if a == nil {
		return false
	}
	return a.ProjectID != "" && (a.ServerSecret != "" || a.ClientSecret != "")
}

// projectParams returns the query parameters for project-scoped authentication.
func (a *Auth) projectParams() map[string]string {
	params := make(map[string]string, 2)
	if a == nil {
		return params
	}
	if a.ProjectID != "" {
		params["project_id"] = a.ProjectID
	}
	if a.ServerSecret != "" {
		params["server_secret"] = a.ServerSecret
	} else if a.ClientSecret != "" {
		params["client_secret"] = a.ClientSecret
	}
	return params
}
