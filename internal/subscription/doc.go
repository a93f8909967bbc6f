// Package subscription gates inbound requests on workspace authorization.
// Unauthorized tenants receive a single advisory message and their
// requests never reach classification or dispatch.
package subscription
