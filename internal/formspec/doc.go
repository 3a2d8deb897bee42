// Package formspec compiles form definitions written in CUE.
//
// A form file declares a top-level "form" value:
//
//	form: {
//		name: "SimpleForm"
//		fields: [
//			{name: "Text", type: "text"},
//			{name: "Integer", type: "integer", min: 0, max: 100},
//			{name: "Float", type: "float"},
//			{name: "SomeChoices", type: "choice", choices: ["One", "Two", "Three"]},
//			{name: "Date", type: "date"},
//		]
//	}
//
// The value is unified with the closed #Form schema, so unknown keys and
// wrong types are rejected with CUE positions. Field order is the order
// in which the bot asks for values.
package formspec
