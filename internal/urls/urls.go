package urls

// DeveloperPortal is where applications are created and their key and
// secret are shown.
const DeveloperPortal = "https://developer.husqvarnagroup.cloud/"

// AuthenticationAPI documents the client-credentials token endpoint.
// Applications must be connected to it.
const AuthenticationAPI = "https://developer.husqvarnagroup.cloud/apis/authentication-api"

// AutomowerConnectAPI documents the mower endpoints, the event stream and
// the request quota.
const AutomowerConnectAPI = "https://developer.husqvarnagroup.cloud/apis/automower-connect-api"
