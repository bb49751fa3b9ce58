// Package vm provides the oVirt VM provisioning stages and the middleware
// chain that runs them.
//
// A stage is a Middleware: it does its work, calls the next handler, and
// may recover when anything after it fails. The up action runs
//
//	ValidateConfig -> ReadState -> IsCreated ? AlreadyCreated : CreateVM -> StartVM -> WaitTillUp
//
// and the destroy action runs
//
//	ValidateConfig -> ReadState -> IsCreated ? ConfirmDestroy -> HaltVM -> RemoveVM : NotCreated
//
// Error Handling:
//
// CreateVM and WaitTillUp undo a failed provisioning by running a
// compensating destroy through Env.Destroyer. The destroy runs at most once
// per failure: an error that already went through compensation is marked
// and later recoverers leave it alone.
//
// Interruption:
//
// Env.Interrupt sets a flag the polling loops check between rounds. It never
// cancels a request already in flight.
package vm
