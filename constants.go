package couchreq

import "github.com/couchreq/couchreq/resource"

// Version is the current version of this package.
const Version = resource.Version

// uuidBatchSize is the number of UUIDs fetched from the server per
// request. They are cheap, so fetch plenty.
const uuidBatchSize = 1000

// Databases whose names are exempt from the usual naming rules.
const (
	UsersDB      = "_users"
	ReplicatorDB = "_replicator"
)
