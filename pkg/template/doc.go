/*
Package template implements a compiling template engine for generating
configuration files from source documents that mix literal text with
embedded scripting directives.

A template is lexed against a per-template Syntax (the delimiter tokens are
data, not code), parsed into an AST, and lowered into an immutable Program
of flat instructions. A Program is safe to share across any number of
concurrent renders: each render call owns a private ScriptContext created
by a Host, so no locking is needed on the render path. The Pool type fans
many (Program, data) pairs out across a bounded worker pool with per-job
results.

The engine delegates all expression and statement evaluation to the Host
binding; it has no opinion about the scripting language beyond the Value
variant used to exchange results. See the luahost package for the Lua
implementation.
*/
package template
