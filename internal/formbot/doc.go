// Package formbot is a form-filling bot used as the reference system under
// test for transcript recording.
//
// The bot walks the fields of a compiled formspec.Form in order, prompting
// for each unfilled one and validating replies by field type. Besides
// field values it understands a few commands at any point:
//
//	help, ?   explain what the current field accepts
//	status    list every field and its value
//	back      return to the previous field
//	skip      leave an optional field unset
//	quit      abandon the form (the turn fails with "Form quit.")
//
// Values may be pre-filled from the initial state or from entity hints
// whose type names a field. Messages are available in English and French;
// the session locale picks one through a language matcher.
package formbot
