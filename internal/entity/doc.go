// Package entity defines the value objects that providers produce and the
// contracts the rest of lazysync relies on.
//
// An entity is an ordinary Go struct that embeds Base and returns its Type
// descriptor. The Type carries an explicit field-mapping table (name to
// accessor) so hydration and serialization never inspect struct tags or
// constructor signatures at call time:
//
//	var WidgetType = entity.NewType("Widget", func() entity.Entity { return &Widget{} },
//		entity.FieldOf("Name", func(w *Widget) string { return w.Name }, func(w *Widget, v string) { w.Name = v }),
//		entity.FieldOf("Owner", func(w *Widget) any { return w.Owner }, func(w *Widget, v any) { w.Owner = v }),
//	)
//
// Fields that may hold a deferred placeholder must be typed any: the
// placeholder is written into the field first and replaced once resolved.
//
// Identity: two entities with equal (provider hash, type, id) are the same
// logical record even when they are different instances. See Same.
package entity
