package jpool

import (
	"github.com/shrek82/jpool/config"
	"github.com/shrek82/jpool/conn"
	"github.com/shrek82/jpool/pool"
)

// Re-export pool types and functions
type Pool = pool.Pool
type Handle = pool.Handle
type Stats = pool.Stats
type Option = pool.Option
type Registry = pool.Registry

var (
	New         = pool.New
	NewRegistry = pool.NewRegistry

	WithLogger       = pool.WithLogger
	WithDialer       = pool.WithDialer
	WithRetryBackoff = pool.WithRetryBackoff
	WithDialTimeout  = pool.WithDialTimeout
	WithReleaseCheck = pool.WithReleaseCheck

	ErrPoolClosed     = pool.ErrPoolClosed
	ErrAcquireTimeout = pool.ErrAcquireTimeout
	ErrAlreadyStarted = pool.ErrAlreadyStarted
	ErrHandleReleased = pool.ErrHandleReleased
)

// Re-export config types and functions
type Config = config.Config

var (
	DefaultConfig = config.Default
	LoadConfig    = config.Load
)

// Re-export connection types and parameter constructors
type Conn = conn.Conn
type Rows = conn.Rows
type Param = conn.Param

var (
	String = conn.String
	Uint32 = conn.Uint32
	Enum   = conn.Enum

	ErrConnectFailed   = conn.ErrConnectFailed
	ErrStatementFailed = conn.ErrStatementFailed
)
