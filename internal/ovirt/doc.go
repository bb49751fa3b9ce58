// Package ovirt provides a client wrapper for interacting with the oVirt
// engine REST API.
//
// This package wraps github.com/ovirt/go-ovirt to provide:
//   - Connection management (connect, close, ping)
//   - The vm.Service operations used by the provisioning stages
//   - Conversion from SDK types to the small snapshot types in package vm
//
// Connection Management:
//
//	client, err := ovirt.ConnectWithContext(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Check connection
//	if err := client.Ping(); err != nil {
//	    return err
//	}
//
// Links:
//
// Listing disk attachments and NICs returns objects that may only carry an
// href. The Reference values handed to package vm keep the SDK object so
// ResolveDisk and ResolveNIC can follow it with Connection.FollowLink.
//
// The SDK's requests take no context. Every Client method checks ctx
// before sending, so a cancelled context stops the next request but not
// one already in flight.
package ovirt
