/*
Package luahost implements the template engine's Host binding on top of
the gopher-lua runtime. Every render call gets its own *lua.LState, so
concurrent renders are isolated by construction and no locking is needed
around fragment evaluation.

Lua values cross into the engine as template.Value: tables with a
non-empty array part become sequences, all other tables become mappings
keyed by the string form of their keys.
*/
package luahost
