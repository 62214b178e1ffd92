// Package events publishes PMFlow domain events to the message bus.
//
// Every create, update and delete of a user, project or task, and every
// login, logout and registration, becomes one JSON Envelope on the topic
// {prefix}/events/{entity}/{action}. Publishing is asynchronous and
// best-effort: a slow or absent broker never delays an API response.
package events
