package vm

import (
	"context"
)

// Handler runs the rest of a chain.
type Handler func(ctx context.Context, env *Env) error

// Middleware is one stage of a chain. Call does the stage's work and usually
// invokes next.
type Middleware interface {
	Call(ctx context.Context, env *Env, next Handler) error
}

// Recoverer is implemented by stages that can undo their work. Recover is
// called with the error returned by the stage's Call, after every later
// stage has had its own chance to recover. Its return value replaces err.
type Recoverer interface {
	Recover(ctx context.Context, env *Env, err error) error
}

// Chain is an ordered list of middleware.
type Chain []Middleware

// Run calls the chain's stages in order.
func (c Chain) Run(ctx context.Context, env *Env) error {
	return c.handler(0, func(context.Context, *Env) error { return nil })(ctx, env)
}

func (c Chain) then(last Handler) Handler {
	return c.handler(0, last)
}

func (c Chain) handler(i int, last Handler) Handler {
	if i == len(c) {
		return last
	}
	mw := c[i]
	next := c.handler(i+1, last)
	return func(ctx context.Context, env *Env) error {
		err := mw.Call(ctx, env, next)
		if err == nil {
			return nil
		}
		if r, ok := mw.(Recoverer); ok {
			return r.Recover(ctx, env, err)
		}
		return err
	}
}

// IfResult runs Cond, then Then when Cond left env.Result true and Else
// otherwise. Whatever follows IfResult in the outer chain runs after the
// chosen branch.
type IfResult struct {
	Cond Middleware
	Then Chain
	Else Chain
}

// Call implements Middleware.
func (b IfResult) Call(ctx context.Context, env *Env, next Handler) error {
	if err := b.Cond.Call(ctx, env, func(context.Context, *Env) error { return nil }); err != nil {
		return err
	}
	if env.Result {
		return b.Then.then(next)(ctx, env)
	}
	return b.Else.then(next)(ctx, env)
}

// UpAction is the chain that brings a machine up.
func UpAction() Chain {
	return Chain{
		ValidateConfig{},
		ReadState{},
		IfResult{
			Cond: IsCreatedStage{},
			Then: Chain{MessageAlreadyCreated{}},
			Else: Chain{CreateVM{}, StartVM{}, WaitTillUp{}},
		},
	}
}

// DestroyAction is the chain that tears a machine down.
func DestroyAction() Chain {
	return Chain{
		ValidateConfig{},
		ReadState{},
		IfResult{
			Cond: IsCreatedStage{},
			Then: Chain{ConfirmDestroy{}, HaltVM{}, RemoveVM{}},
			Else: Chain{MessageNotCreated{}},
		},
	}
}

// ChainDestroyer runs DestroyAction as the compensating destroy.
type ChainDestroyer struct{}

// Destroy implements Destroyer.
func (ChainDestroyer) Destroy(ctx context.Context, env *Env) error {
	return DestroyAction().Run(ctx, env)
}
