// Package bus implements the scoped publish/subscribe channel that chat
// lifecycle events flow through. Delivery is synchronous and in registration
// order; handlers may spawn asynchronous work internally but Publish returns
// once handlers have been invoked, not completed. Events are not queued or
// retried: if no subscriber is registered when Publish runs, the event is
// lost. The bus models transient notifications, not a durable log.
package bus
