// Package dynamodb provides a layout.Registry backed by an Amazon DynamoDB
// table. Publishing uses a conditional put, so a descriptor name can be
// claimed only once even when memory nodes race.
package dynamodb
