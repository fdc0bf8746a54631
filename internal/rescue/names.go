package rescue

import "strings"

// commonNames is the curated dictionary of given names and surnames that
// regularly appear on Indian identity cards. Earlier entries win when
// several appear in the same text.
var commonNames = []string{
	// given names
	"Siddharth", "Sidharth", "Rahul", "Amit", "Priya", "Neha", "Raj", "Arun", "Vijay",
	"Akshat", "Arjun", "Rohan", "Karan", "Varun", "Nikhil", "Ankit", "Mohit", "Rohit",
	"Deepak", "Suresh", "Ramesh", "Mahesh", "Ganesh", "Rajesh", "Mukesh", "Dinesh",
	"Sanjay", "Ajay", "Ravi", "Sunil", "Anil", "Manoj", "Vinod", "Pramod",
	"Ashok", "Alok", "Vivek", "Abhishek", "Manish", "Satish", "Girish", "Harish",
	"Pankaj", "Neeraj", "Saurabh", "Gaurav", "Vishal", "Kunal", "Sumit", "Puneet",
	"Aarav", "Vihaan", "Aditya", "Aryan", "Reyansh", "Ayaan", "Krishna", "Ishaan",
	"Pooja", "Anjali", "Sneha", "Divya", "Kavita", "Sunita",
	"Anita", "Rekha", "Meena", "Seema", "Geeta", "Sita", "Radha", "Lakshmi",
	"Sarita", "Mamta", "Shweta", "Preeti", "Ritu", "Nisha", "Asha", "Usha",
	"Aadhya", "Ananya", "Diya", "Myra", "Sara", "Aanya", "Kiara", "Avni",
	// surnames that may stand alone
	"Kumar", "Singh", "Sharma", "Verma", "Gupta", "Jain", "Agarwal", "Patel",
	"Shah", "Mehta", "Reddy", "Rao", "Nair", "Menon", "Iyer", "Iyengar",
}

// nameRank maps a lower-cased dictionary entry to its priority.
var nameRank = func() map[string]int {
	m := make(map[string]int, len(commonNames))
	for i, n := range commonNames {
		k := strings.ToLower(n)
		if _, ok := m[k]; !ok {
			m[k] = i
		}
	}
	return m
}()

// dictionaryRank returns the priority of word in the dictionary.
func dictionaryRank(word string) (int, bool) {
	r, ok := nameRank[strings.ToLower(word)]
	return r, ok
}
