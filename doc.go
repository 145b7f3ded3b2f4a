// Package umongo is an object-document mapper for MongoDB: declarative
// schemas with per-field constraints and validators, dirty-field change
// tracking producing minimal partial updates, concurrent asynchronous
// validation with deterministic per-field ordering, uniqueness and reference
// integrity checks, and single-collection inheritance.
//
// An Instance binds registered document types to one database:
//
//	instance, err := umongo.New(umongo.WithMongo("mongodb://localhost", "app"))
//	Student, err := instance.Register(umongo.Def{
//		Name: "Student",
//		Fields: []*umongo.Field{
//			umongo.StrField("name", umongo.Required()),
//			umongo.DateTimeField("birthday"),
//		},
//	})
//	john, err := Student.New(umongo.Values{"name": "John Doe"})
//	err = john.Commit(ctx)
//
// Mutations are tracked per field; a later Commit sends only the changed
// fields, and committing an unchanged document never round-trips to the
// store.
package umongo
