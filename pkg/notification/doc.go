// Package notification defines the dispatch boundary between the metering
// engine and whatever actually delivers messages to users. The monitor and
// downgrade services emit advance warnings, expiry notices, and downgrade
// notices through the Notifier interface; transports live outside this
// module.
package notification
