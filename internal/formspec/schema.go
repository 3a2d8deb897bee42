package formspec

// schemaSource is unified with every form before decoding.
const schemaSource = `
#FieldType: "text" | "integer" | "float" | "choice" | "date"

#Field: {
	name:         string & =~"^[A-Za-z][A-Za-z0-9_]*$"
	type:         #FieldType
	prompt?:      string
	description?: string
	optional:     bool | *false
	choices?: [...string]
	min?: number
	max?: number
}

#Form: {
	name: string & !=""
	fields: [...#Field]
}
`
