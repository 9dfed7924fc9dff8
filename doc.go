// Package auth provides the server side of the booking demo: HS256 token
// issuance and validation, bun backed repositories for users, rooms and
// bookings, and the go-router routes that expose them.
//
// Tokens:
//   - TokenService mints compact HS256 tokens carrying nameid, unique_name,
//     email and role next to the registered claims. Expiry is iat plus the
//     configured TTL plus an optional ExpiryPadding that defaults to zero.
//   - HMACValidator checks, in order, the segment count, the signature, the
//     nbf <= now <= exp window with no leeway and the optional issuer and
//     audience.
//     Each failure maps to its own text code (see errors.go).
//
// HTTP:
//   - NewServer builds a go-router server over fiber with the JSON
//     ErrorHandler and panic recovery, then calls RegisterRoutes. NewApp
//     returns the wrapped *fiber.App for tests and adaptors.
//   - RegisterRoutes mounts /User, /Room, /Booking and /api/Status on any
//     router.Router. Protected routes answer 401 "Unauthorized" without
//     further detail.
//
// Activity sinks:
//   - ActivitySink receives login, registration, booking and rejected token
//     events. Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication. ActivitySinks fans
//     one event out to several sinks; see the activitymap package for a
//     redis list sink.
package auth
