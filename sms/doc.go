// Package sms contains phoneverify.Sender implementations.
//
// SNSSender publishes transactional SMS through Amazon SNS. LogSender writes
// the message to a zap logger and is meant for local development.
package sms
