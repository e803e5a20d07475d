// Package forward lets code refer to packages, types and members of a foreign
// runtime before that runtime has started.
//
// References are built with ordinary attribute and subscript access:
//
//	root := forward.Default().Root()
//	lang, _ := root.Child("java")
//	str, _ := lang.Attr("lang")
//
// Every symbol maps to a single live *Ref. When the runtime starts, a
// Resolver looks each pending reference up, classifies what it found and
// binds the reference in place, so code that captured it at import time sees
// the live namespace, type or object from then on. Operations that need the
// runtime fail with ErrRuntimeNotReady until then.
package forward
