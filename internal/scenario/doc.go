// Package scenario loads scenario files: YAML documents naming a form, the
// bot configuration and the scripted user inputs of one conversation.
//
// Example:
//
//	name: simple_form
//	description: Fills every field of the simple form
//	form: forms/simple.cue
//	transcript: SimpleForm.script
//	locale: en-us
//	snapshot: true
//	entities:
//	  - type: Text
//	    entity: some text
//	options:
//	  prompt_style: buttons
//	inputs:
//	  - Hi
//	  - "99"
//
// Paths are relative to the scenario file. transcript defaults to
// <name>.script; locale defaults to en-us.
package scenario
